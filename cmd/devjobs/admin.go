package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

type createAdminConfig struct {
	email     string
	password  string
	firstName string
	lastName  string
	roles     []string
}

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	cfg := &createAdminConfig{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision an administrator account",
		Long: `Creates an identity holding ROLE_ADMIN (plus any extra --role values).
Fails when the email is already registered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateAdmin(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "admin email address")
	cmd.Flags().StringVar(&cfg.password, "password", "", "admin password")
	cmd.Flags().StringVar(&cfg.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&cfg.lastName, "last-name", "", "last name")
	cmd.Flags().StringSliceVar(&cfg.roles, "role", nil, "additional role, repeatable (e.g. ROLE_RECRUITER)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runCreateAdmin(cmd *cobra.Command, _ []string, cfg *createAdminConfig) error {
	a, err := newApp(cmd.Context(), storeKind)
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.auth.Provision(cmd.Context(), ports.ProvisionInput{
		Email:     cfg.email,
		Password:  cfg.password,
		FirstName: cfg.firstName,
		LastName:  cfg.lastName,
		Roles:     append([]string{domain.RoleAdmin}, cfg.roles...),
	})
	if errors.Is(err, domain.ErrDuplicateIdentity) {
		return errors.New("an identity with that email already exists")
	}
	if err != nil {
		return err
	}

	cmd.Printf("created admin %s (id %d, roles %v)\n", identity.Email, identity.ID, identity.Roles())
	return nil
}
