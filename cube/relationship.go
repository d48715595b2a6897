package cube

import "github.com/EliasOenal/verity-sub007/fields"

// RelationshipType tags the meaning of a RELATES_TO field's target key.
type RelationshipType uint8

const (
	REPLY_TO                          RelationshipType = 0
	MENTION                           RelationshipType = 1
	MYPOST                            RelationshipType = 2
	CONTINUED_IN                      RelationshipType = 3
	ILLUSTRATION                      RelationshipType = 4
	KEY_BACKUP_CUBE                   RelationshipType = 5
	SUBSCRIPTION_RECOMMENDATION       RelationshipType = 6
	SUBSCRIPTION_RECOMMENDATION_INDEX RelationshipType = 7
)

// Relationship is a 1-byte relationship type tag plus a 32-byte target key.
type Relationship struct {
	Type   RelationshipType
	Target Key
}

// Field encodes r as a RELATES_TO field.
func (r Relationship) Field() (fields.Field, error) {
	value := make([]byte, 33)
	value[0] = byte(r.Type)
	copy(value[1:], r.Target[:])
	return fields.NewField(fields.RELATES_TO, value)
}

// RelationshipFromField decodes f as a Relationship. It returns
// WrongFieldType if f is not a RELATES_TO field or has the wrong length —
// demarshalling a PAYLOAD (or any other field) as a Relationship must fail
// rather than silently misinterpret bytes.
func RelationshipFromField(f fields.Field) (Relationship, error) {
	if f.Type != fields.RELATES_TO || len(f.Value) != 33 {
		return Relationship{}, &fields.WrongFieldType{Type: f.Type}
	}
	var r Relationship
	r.Type = RelationshipType(f.Value[0])
	copy(r.Target[:], f.Value[1:])
	return r, nil
}

// Relationships decodes every RELATES_TO field in flds of the given type,
// skipping any that fail to parse.
func Relationships(flds []fields.Field, t RelationshipType) []Relationship {
	var out []Relationship
	for _, f := range fields.AllOfType(flds, fields.RELATES_TO) {
		r, err := RelationshipFromField(f)
		if err != nil || r.Type != t {
			continue
		}
		out = append(out, r)
	}
	return out
}
