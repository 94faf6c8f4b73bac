package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
)

// MajsoulPaipu caches downloaded replays by id.
type MajsoulPaipu struct {
	ent.Schema
}

func (MajsoulPaipu) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "majsoul_paipu"},
	}
}

func (MajsoulPaipu) Fields() []ent.Field {
	return []ent.Field{
		field.String("paipu_uuid").NotEmpty().MaxLen(64).Immutable(),
		field.Text("content"),
	}
}
