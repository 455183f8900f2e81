package parse

import (
	"fmt"
	"strings"

	"laundry-tracking-backend/internal/model"
)

// ServiceType normalizes a raw service label into the closed enum. Labels come
// from transaction records and vary: "Wash Only", "Dry", "Wash & Dry",
// "WASH_AND_DRY". The legacy " Only" suffix is stripped here so the state
// machine never sees it.
func ServiceType(raw string) (model.ServiceType, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, " Only")
	s = strings.TrimSuffix(s, " only")

	// Collapse the connector variants of the combined service.
	normalized := strings.ToUpper(s)
	normalized = strings.ReplaceAll(normalized, "&", "AND")
	normalized = strings.Join(strings.Fields(normalized), "_")

	switch normalized {
	case "WASH":
		return model.ServiceWash, nil
	case "DRY":
		return model.ServiceDry, nil
	case "WASH_AND_DRY", "WASH_DRY":
		return model.ServiceWashAndDry, nil
	}
	return "", fmt.Errorf("unrecognized service type: %q", raw)
}
