package policy

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/zeebo/blake3"
)

// Strategy tags how a field value is transformed before leaving the
// service.
type Strategy string

const (
	StrategyNone    Strategy = "none"
	StrategyPartial Strategy = "partial"
	StrategyFull    Strategy = "full"
	StrategyHash    Strategy = "hash"
)

const hashRevealLength = 16

// Well-known directory field names used in masking profiles.
const (
	FieldUID        = "uid"
	FieldName       = "name"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldEmployeeID = "employee_id"
	FieldTeam       = "team"
	FieldManager    = "manager"
	FieldTitle      = "title"
	FieldLocation   = "location"
)

// maskingProfiles maps role and field name to a strategy. A field absent
// from a role's profile is fully masked; over-masking is the safe default.
var maskingProfiles = map[Role]map[string]Strategy{
	RoleAdmin: {
		FieldUID:        StrategyNone,
		FieldName:       StrategyNone,
		FieldEmail:      StrategyNone,
		FieldPhone:      StrategyNone,
		FieldEmployeeID: StrategyNone,
		FieldTeam:       StrategyNone,
		FieldManager:    StrategyNone,
		FieldTitle:      StrategyNone,
		FieldLocation:   StrategyNone,
	},
	RoleManager: {
		FieldUID:        StrategyNone,
		FieldName:       StrategyNone,
		FieldEmail:      StrategyNone,
		FieldPhone:      StrategyFull,
		FieldEmployeeID: StrategyNone,
		FieldTeam:       StrategyNone,
		FieldManager:    StrategyNone,
		FieldTitle:      StrategyNone,
		FieldLocation:   StrategyNone,
	},
	RoleViewer: {
		FieldUID:        StrategyNone,
		FieldName:       StrategyNone,
		FieldEmail:      StrategyPartial,
		FieldPhone:      StrategyFull,
		FieldEmployeeID: StrategyHash,
		FieldTeam:       StrategyNone,
		FieldManager:    StrategyNone,
		FieldTitle:      StrategyNone,
		FieldLocation:   StrategyNone,
	},
	RoleAuditor: {
		FieldUID:        StrategyNone,
		FieldName:       StrategyNone,
		FieldEmail:      StrategyPartial,
		FieldPhone:      StrategyFull,
		FieldEmployeeID: StrategyHash,
		FieldTeam:       StrategyNone,
		FieldManager:    StrategyNone,
		FieldTitle:      StrategyNone,
		FieldLocation:   StrategyNone,
	},
}

// MaskingProfileFor returns the field→strategy mapping for a role. The
// returned map is a copy; unknown roles yield an empty profile, which
// masks every field.
func MaskingProfileFor(role Role) map[string]Strategy {
	profile := maskingProfiles[role]
	out := make(map[string]Strategy, len(profile))
	for field, strategy := range profile {
		out[field] = strategy
	}
	return out
}

// Masker applies masking strategies. The salt is per deployment, so hashed
// values correlate within one deployment but not across deployments.
type Masker struct {
	salt []byte
}

// NewMasker builds a Masker. An empty salt is rejected so the hash
// strategy can never silently degrade to an unsalted digest.
func NewMasker(salt string) (*Masker, error) {
	if strings.TrimSpace(salt) == "" {
		return nil, errors.New("policy: masking salt is required")
	}
	return &Masker{salt: []byte(salt)}, nil
}

// StrategyFor resolves the strategy for (role, field), defaulting to full
// masking when no rule is configured.
func (m *Masker) StrategyFor(role Role, field string) Strategy {
	if strategy, ok := maskingProfiles[role][field]; ok {
		return strategy
	}
	return StrategyFull
}

// Apply transforms value according to the strategy for (role, field).
// Deterministic: the same inputs always give the same output.
func (m *Masker) Apply(role Role, field, value string) string {
	if value == "" {
		return value
	}
	switch m.StrategyFor(role, field) {
	case StrategyNone:
		return value
	case StrategyPartial:
		return MaskPartial(value)
	case StrategyHash:
		return m.maskHash(value)
	default:
		return MaskFull(value)
	}
}

// MaskPartial reveals the first and last character of the local part and
// replaces the interior with a fixed-width mask: john.doe@x.com becomes
// j***e@x.com. Non-email values are treated as a bare local part.
func MaskPartial(value string) string {
	local, domain, hasDomain := strings.Cut(value, "@")
	if len(local) <= 2 {
		local = strings.Repeat("*", len(local))
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	if hasDomain {
		return local + "@" + domain
	}
	return local
}

// MaskFull replaces the whole value with a fixed-length redaction. Values
// that look like phone numbers keep the last four digits: ***-***-1234.
func MaskFull(value string) string {
	digits := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			digits = append(digits, value[i])
		}
	}
	if len(digits) >= 10 {
		return "***-***-" + string(digits[len(digits)-4:])
	}
	return "********"
}

// maskHash replaces the value with a salted one-way digest.
func (m *Masker) maskHash(value string) string {
	hasher := blake3.New()
	hasher.Write(m.salt)
	hasher.Write([]byte(value))
	return hex.EncodeToString(hasher.Sum(nil))[:hashRevealLength]
}
