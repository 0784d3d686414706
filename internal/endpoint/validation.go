package endpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100
	maxSlugLength = 50
	slugPattern   = `^[a-z0-9]+(?:-[a-z0-9]+)*$`

	// Size limits for JSON fields to prevent memory exhaustion from
	// oversized registry writes.
	maxStateKeys      = 20
	maxPropertyKeys   = 20
	maxStringValueLen = 1024
)

var slugRegex = regexp.MustCompile(slugPattern)

// Pre-computed validation set for O(1) lookups.
var validHealthStatus map[HealthStatus]struct{}

func init() {
	validHealthStatus = make(map[HealthStatus]struct{}, len(AllHealthStatuses()))
	for _, s := range AllHealthStatuses() {
		validHealthStatus[s] = struct{}{}
	}
}

// ValidateEndpoint performs comprehensive validation on an endpoint.
// Returns an error describing the first validation failure found.
func ValidateEndpoint(e *Endpoint) error {
	if e == nil {
		return ErrInvalidEndpoint
	}

	if err := ValidateID(e.ID); err != nil {
		return err
	}

	if err := ValidateName(e.Name); err != nil {
		return err
	}

	// Validate slug if provided (empty slug will be generated)
	if e.Slug != "" {
		if err := ValidateSlug(e.Slug); err != nil {
			return err
		}
	}

	if err := ValidateActionID(e.ActionID); err != nil {
		return err
	}

	if e.Step < 0 || e.Step > 100 {
		return fmt.Errorf("%w: step must be 0-100", ErrInvalidEndpoint)
	}

	if len(e.State) > maxStateKeys {
		return fmt.Errorf("%w: state exceeds max keys (%d)", ErrInvalidState, maxStateKeys)
	}
	for k, v := range e.State {
		if len(k) > maxStringValueLen {
			return fmt.Errorf("%w: state key too long", ErrInvalidState)
		}
		if s, ok := v.(string); ok && len(s) > maxStringValueLen {
			return fmt.Errorf("%w: state value too long", ErrInvalidState)
		}
	}

	if len(e.Properties) > maxPropertyKeys {
		return fmt.Errorf("%w: properties exceed max keys (%d)", ErrInvalidEndpoint, maxPropertyKeys)
	}
	for k, v := range e.Properties {
		if len(k) > maxStringValueLen || len(v) > maxStringValueLen {
			return fmt.Errorf("%w: property too long", ErrInvalidEndpoint)
		}
	}

	if e.HealthStatus != "" {
		if err := ValidateHealthStatus(e.HealthStatus); err != nil {
			return err
		}
	}

	return nil
}

// ValidateID checks the endpoint identifier. IDs appear as MQTT topic
// segments and must not contain separators or wildcards.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidEndpoint)
	}
	if strings.ContainsAny(id, "/#+") {
		return fmt.Errorf("%w: id %q contains topic separator characters", ErrInvalidEndpoint, id)
	}
	if len(id) > maxNameLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidEndpoint, maxNameLength)
	}
	return nil
}

// ValidateName checks if an endpoint name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateSlug checks if a slug format is valid.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug cannot be empty", ErrInvalidSlug)
	}
	if len(slug) > maxSlugLength {
		return fmt.Errorf("%w: slug exceeds %d characters", ErrInvalidSlug, maxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("%w: slug must be lowercase alphanumeric with hyphens", ErrInvalidSlug)
	}
	return nil
}

// ValidateActionID checks the controller action id format. The
// controller addresses actions by decimal id.
func ValidateActionID(actionID string) error {
	if actionID == "" {
		return fmt.Errorf("%w: action id cannot be empty", ErrInvalidActionID)
	}
	if _, err := strconv.Atoi(actionID); err != nil {
		return fmt.Errorf("%w: %q must be a decimal string", ErrInvalidActionID, actionID)
	}
	return nil
}

// ValidateHealthStatus checks if a health status is valid.
// Uses O(1) map lookup for efficiency.
func ValidateHealthStatus(status HealthStatus) error {
	if _, ok := validHealthStatus[status]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidState, status)
}

// GenerateSlug creates a URL-safe slug from a name.
func GenerateSlug(name string) string {
	// Convert to lowercase
	slug := strings.ToLower(name)

	// Replace spaces and underscores with hyphens
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")

	// Remove any characters that aren't alphanumeric or hyphens
	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	// Remove leading/trailing hyphens and collapse multiple hyphens
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	// Truncate if too long
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		// Don't end with a hyphen
		slug = strings.TrimRight(slug, "-")
	}

	return slug
}

// GenerateID creates a new UUID for an endpoint created outside the
// bridge configuration.
func GenerateID() string {
	return uuid.New().String()
}
