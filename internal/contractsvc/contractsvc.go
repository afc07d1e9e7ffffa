// Package contractsvc defines the abstract port the engine uses to look
// up contract rules (tax-lot method and business rules) by contractId,
// with concrete bindings selected by the contract.service.type config
// option.
package contractsvc

import (
	"context"

	"github.com/srviswan/positionengine/internal/position"
)

// ContractService resolves a contractId to its Contract. On a lookup miss
// the bundled implementations return a zero Contract with found=false and
// no error; the hotpath and coldpath then use their default tax-lot method.
type ContractService interface {
	Lookup(ctx context.Context, contractID string) (contract position.Contract, found bool, err error)
}
