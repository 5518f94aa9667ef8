package simulation

import (
	"context"
	"fmt"
	"strings"

	"github.com/cyberrange/simnet-backend/model"
)

// Validator runs the ordered scenario validation checks. Checks run in a
// fixed order and the first violation aborts validation, so callers always
// see the earliest failure.
type Validator struct {
	scenarios ScenarioStore
	devices   DeviceStore
}

// NewValidator creates a validator over the given stores.
func NewValidator(scenarios ScenarioStore, devices DeviceStore) *Validator {
	return &Validator{scenarios: scenarios, devices: devices}
}

// Validate checks a scenario for create or update. excludeKey carries the
// scenario's own key on update so the uniqueness check ignores it; it is
// empty on create.
func (v *Validator) Validate(ctx context.Context, s *model.Scenario, excludeKey string) error {
	if strings.TrimSpace(s.Name) == "" {
		return validationErr(CodeNameRequired, "name", "Scenario name is required")
	}

	taken, err := v.scenarios.NameExists(ctx, s.Name, excludeKey)
	if err != nil {
		return err
	}
	if taken {
		return validationErr(CodeNameTaken, "name",
			fmt.Sprintf("Scenario name %q is already in use", s.Name))
	}

	if s.Type == "" {
		return validationErr(CodeTypeInvalid, "type", "Scenario type is required")
	}
	if !model.ValidScenarioType(s.Type) {
		return validationErr(CodeTypeInvalid, "type",
			fmt.Sprintf("Unknown scenario type %q", s.Type))
	}

	if strings.TrimSpace(s.AttackVector) == "" {
		return validationErr(CodeVectorRequired, "attack_vector", "Attack vector is required")
	}

	if s.DurationSeconds <= 0 {
		return validationErr(CodeDurationInvalid, "duration_seconds", "Duration must be greater than zero")
	}

	if len(s.TargetDevices) == 0 {
		return validationErr(CodeTargetsRequired, "target_devices", "At least one target device is required")
	}

	found, err := v.devices.Lookup(ctx, s.TargetDevices)
	if err != nil {
		return err
	}
	for _, key := range s.TargetDevices {
		dev, ok := found[key]
		if !ok {
			return validationErr(CodeTargetUnknown, "target_devices",
				fmt.Sprintf("Target device %s does not exist", key))
		}
		if !dev.Active {
			return validationErr(CodeTargetInactive, "target_devices",
				fmt.Sprintf("Target device %s is not active", key))
		}
	}

	return v.validateMetadata(s)
}

// validateMetadata applies the type-specific checks. Optional fields are
// validated only when present.
func (v *Validator) validateMetadata(s *model.Scenario) error {
	switch s.Type {
	case model.ScenarioTypeRansomware:
		if raw, ok := s.Metadata["encryption_method"]; ok {
			method, _ := raw.(string)
			if strings.TrimSpace(method) == "" {
				return validationErr(CodeMetadataInvalid, "metadata.encryption_method",
					"Ransomware encryption method must be a non-empty string")
			}
		}
		if raw, ok := s.Metadata["ransom_note"]; ok {
			note, _ := raw.(string)
			if strings.TrimSpace(note) == "" {
				return validationErr(CodeMetadataInvalid, "metadata.ransom_note",
					"Ransomware ransom note must be a non-empty string")
			}
		}
		if amount, ok := s.MetadataFloat("ransom_amount"); ok && amount <= 0 {
			return validationErr(CodeMetadataInvalid, "metadata.ransom_amount",
				"Ransom amount must be positive")
		}

	case model.ScenarioTypeDDoS:
		if volume, ok := s.MetadataFloat("traffic_volume_gbps"); ok && volume <= 0 {
			return validationErr(CodeMetadataInvalid, "metadata.traffic_volume_gbps",
				"DDoS traffic volume must be positive")
		}
		if dur, ok := s.MetadataFloat("attack_duration_seconds"); ok && dur <= 0 {
			return validationErr(CodeMetadataInvalid, "metadata.attack_duration_seconds",
				"DDoS attack duration must be positive")
		}

	case model.ScenarioTypePhishing:
		if raw, ok := s.Metadata["target_users"]; ok {
			users, isList := raw.([]interface{})
			if !isList || len(users) == 0 {
				return validationErr(CodeMetadataInvalid, "metadata.target_users",
					"Phishing target user list must be non-empty")
			}
		}

	case model.ScenarioTypeInsiderThreat, model.ScenarioTypeCustom:
		// No type-specific metadata constraints.
	}

	if iterations, ok := s.MetadataInt("iterations"); ok && iterations <= 0 {
		return validationErr(CodeMetadataInvalid, "metadata.iterations",
			"Iteration count must be positive")
	}

	return nil
}
