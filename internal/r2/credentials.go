// Package r2 models the Cloudflare R2 credential groups used by the
// templar training infrastructure: one group for the gradient bucket,
// one for the dataset bucket.
package r2

import (
	"errors"
	"fmt"
	"os"
)

// Group names the two credential groups carried in the environment.
type Group string

const (
	GroupGradients Group = "gradients"
	GroupDataset   Group = "dataset"
)

// AccessMode selects which keypair of a group is used.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
)

// Keypair is a single R2 access key id / secret pair.
type Keypair struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Credentials holds everything needed to reach one R2 bucket: the account,
// the bucket name, and separate read and write keypairs. Write keys may be
// absent for read-only consumers.
type Credentials struct {
	AccountID  string
	BucketName string
	Read       Keypair
	Write      Keypair
}

// ValidationError reports a missing or empty credential field.
type ValidationError struct {
	Group Group
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("r2 %s credentials: missing %s", e.Group, e.Field)
}

// IsValidation checks whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Endpoint returns the account-scoped R2 S3 endpoint.
func (c Credentials) Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// Region is the region R2 expects on S3-compatible clients.
const Region = "auto"

// Keys returns the keypair for the requested access mode.
// Selecting AccessWrite on a group without write keys is an error.
func (c Credentials) Keys(group Group, mode AccessMode) (Keypair, error) {
	switch mode {
	case AccessWrite:
		if c.Write.AccessKeyID == "" || c.Write.SecretAccessKey == "" {
			return Keypair{}, &ValidationError{Group: group, Field: "write keypair"}
		}
		return c.Write, nil
	default:
		if c.Read.AccessKeyID == "" || c.Read.SecretAccessKey == "" {
			return Keypair{}, &ValidationError{Group: group, Field: "read keypair"}
		}
		return c.Read, nil
	}
}

// Validate checks the fields every consumer needs. Write keys are not
// required here; Keys enforces them at the point of use.
func (c Credentials) Validate(group Group) error {
	switch {
	case c.AccountID == "":
		return &ValidationError{Group: group, Field: "account id"}
	case c.BucketName == "":
		return &ValidationError{Group: group, Field: "bucket name"}
	case c.Read.AccessKeyID == "":
		return &ValidationError{Group: group, Field: "read access key id"}
	case c.Read.SecretAccessKey == "":
		return &ValidationError{Group: group, Field: "read secret access key"}
	}
	return nil
}

// Set is the full credential environment: both groups.
type Set struct {
	Gradients Credentials
	Dataset   Credentials
}

// Lookup resolves one variable by name, returning false when unset or empty.
type Lookup func(key string) (string, bool)

// OSLookup reads from the process environment.
func OSLookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FromLookup assembles a credential set from the twelve R2_* variables.
// Missing required variables surface as ValidationErrors from Validate.
func FromLookup(lookup Lookup) (Set, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	load := func(prefix string) Credentials {
		return Credentials{
			AccountID:  get(prefix + "_ACCOUNT_ID"),
			BucketName: get(prefix + "_BUCKET_NAME"),
			Read: Keypair{
				AccessKeyID:     get(prefix + "_READ_ACCESS_KEY_ID"),
				SecretAccessKey: get(prefix + "_READ_SECRET_ACCESS_KEY"),
			},
			Write: Keypair{
				AccessKeyID:     get(prefix + "_WRITE_ACCESS_KEY_ID"),
				SecretAccessKey: get(prefix + "_WRITE_SECRET_ACCESS_KEY"),
			},
		}
	}

	set := Set{
		Gradients: load("R2_GRADIENTS"),
		Dataset:   load("R2_DATASET"),
	}

	if err := set.Gradients.Validate(GroupGradients); err != nil {
		return Set{}, err
	}
	if err := set.Dataset.Validate(GroupDataset); err != nil {
		return Set{}, err
	}
	return set, nil
}

// ByGroup returns the credentials for a named group.
func (s Set) ByGroup(group Group) (Credentials, error) {
	switch group {
	case GroupGradients:
		return s.Gradients, nil
	case GroupDataset:
		return s.Dataset, nil
	default:
		return Credentials{}, fmt.Errorf("unknown credential group %q", group)
	}
}
