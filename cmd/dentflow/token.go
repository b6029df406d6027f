package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/dcms/dentflow/pkg/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var role, subject, patientID, dentistID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			claims, err := buildClaims(role, subject, patientID, dentistID)
			if err != nil {
				return err
			}
			pair, err := auth.NewJWTManager(cfg.JWT).GenerateAccessToken(claims)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pair)
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.RoleStaff), "admin, staff, dentist or patient")
	cmd.Flags().StringVar(&subject, "sub", "", "user id (random when empty)")
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id, required for the patient role")
	cmd.Flags().StringVar(&dentistID, "dentist", "", "dentist id, required for the dentist role")
	return cmd
}

func buildClaims(role, subject, patientID, dentistID string) (*domain.Claims, error) {
	claims := &domain.Claims{Role: domain.Role(role), UserID: uuid.New()}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if subject != "" {
		id, err := uuid.Parse(subject)
		if err != nil {
			return nil, fmt.Errorf("--sub: %w", err)
		}
		claims.UserID = id
	}

	switch claims.Role {
	case domain.RolePatient:
		if patientID == "" {
			return nil, errors.New("--patient is required for the patient role")
		}
		id, err := uuid.Parse(patientID)
		if err != nil {
			return nil, fmt.Errorf("--patient: %w", err)
		}
		claims.PatientID = &id
	case domain.RoleDentist:
		if dentistID == "" {
			return nil, errors.New("--dentist is required for the dentist role")
		}
		id, err := uuid.Parse(dentistID)
		if err != nil {
			return nil, fmt.Errorf("--dentist: %w", err)
		}
		claims.DentistID = &id
	}
	return claims, nil
}
