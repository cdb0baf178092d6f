// Package seed provisions identities listed in a YAML file, typically the
// initial administrators of a fresh deployment.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

// File is the seed document layout:
//
//	identities:
//	  - email: admin@devjobs.com
//	    password: change-me-now
//	    roles: [ROLE_ADMIN]
type File struct {
	Identities []Entry `yaml:"identities"`
}

type Entry struct {
	Email     string   `yaml:"email"`
	Password  string   `yaml:"password"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Roles     []string `yaml:"roles"`
}

// Provisioner creates identities with explicit roles.
type Provisioner interface {
	Provision(ctx context.Context, in ports.ProvisionInput) (*domain.Identity, error)
}

// Result counts what a seed run did.
type Result struct {
	Created int
	Skipped int
}

// FromFile reads path and provisions every entry in it.
func FromFile(ctx context.Context, path string, p Provisioner) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("seed: %w", err)
	}
	defer f.Close()
	return FromReader(ctx, f, p)
}

// FromReader provisions every entry of a YAML seed document. Entries whose
// email already exists are skipped, which makes repeated runs harmless.
// Entries missing an email or password are rejected.
func FromReader(ctx context.Context, r io.Reader, p Provisioner) (Result, error) {
	var doc File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("seed: decode: %w", err)
	}

	var res Result
	for i, entry := range doc.Identities {
		if entry.Email == "" || entry.Password == "" {
			return res, fmt.Errorf("seed: entry %d: email and password are required", i)
		}
		_, err := p.Provision(ctx, ports.ProvisionInput{
			Email:     entry.Email,
			Password:  entry.Password,
			FirstName: entry.FirstName,
			LastName:  entry.LastName,
			Roles:     entry.Roles,
		})
		switch {
		case errors.Is(err, domain.ErrDuplicateIdentity):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("seed: entry %d (%s): %w", i, entry.Email, err)
		default:
			res.Created++
		}
	}
	return res, nil
}
