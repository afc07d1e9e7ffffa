// Package reststub is a minimal HTTP client implementation of
// internal/contractsvc.ContractService, for the `contract.service.type:
// rest` config option. The REST edge it talks to is an
// external collaborator out of scope for this module; this
// package only provides the client-side port so the config option names
// something real rather than being silently unimplemented.
package reststub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/srviswan/positionengine/internal/position"
)

// Service calls a contract-rules REST endpoint of the shape
// GET {BaseURL}/contracts/{contractId} -> {contractId, taxLotMethod}.
type Service struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a Service pointed at baseURL, using client if non-nil or
// http.DefaultClient otherwise.
func New(baseURL string, client *http.Client) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{BaseURL: baseURL, HTTPClient: client}
}

type contractDTO struct {
	ContractID   string `json:"contractId"`
	TaxLotMethod string `json:"taxLotMethod"`
}

// Lookup implements contractsvc.ContractService.
func (s *Service) Lookup(ctx context.Context, contractID string) (position.Contract, bool, error) {
	u := fmt.Sprintf("%s/contracts/%s", s.BaseURL, url.PathEscape(contractID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return position.Contract{}, false, err
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return position.Contract{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return position.Contract{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return position.Contract{}, false, fmt.Errorf("contract service returned status %d", resp.StatusCode)
	}

	var dto contractDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return position.Contract{}, false, err
	}
	return position.Contract{
		ContractID:   dto.ContractID,
		TaxLotMethod: position.TaxLotMethod(dto.TaxLotMethod),
	}, true, nil
}
