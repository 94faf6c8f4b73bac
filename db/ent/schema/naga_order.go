package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/joseph-ayodele/nagabus/constants"
	"github.com/joseph-ayodele/nagabus/db/ent/schema/utils"
)

// NagaOrder is one paid analysis order. Times are unix milliseconds.
type NagaOrder struct {
	ent.Schema
}

func (NagaOrder) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "naga_orders"},
	}
}

func (NagaOrder) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").
			Immutable().
			StorageKey("id"),
		field.String("haihu_id").NotEmpty().MaxLen(128),
		// model name, e.g. "nishiki"; numeric types overlap between game rules
		field.String("model_type").NotEmpty().MaxLen(32),
		field.String("source").
			Validate(utils.EnumValidator(string(constants.SourceTenhou), string(constants.SourceMajsoul))),
		field.String("customer_id").NotEmpty().MaxLen(128),
		field.Int64("cost_np").NonNegative(),
		field.String("status").
			Validate(utils.EnumValidator(string(constants.OrderStatusPending), string(constants.OrderStatusDone))),
		field.Text("report").Optional().Nillable(),
		field.Int64("created_at").Immutable(),
		field.Int64("updated_at"),
	}
}

func (NagaOrder) Edges() []ent.Edge {
	return []ent.Edge{
		// ONE order -> optional Majsoul segment
		edge.To("segment", MajsoulOrder.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (NagaOrder) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("haihu_id", "model_type").Unique(),
		index.Fields("created_at"),
	}
}

// MajsoulOrder records which round of which replay a custom order analyses.
type MajsoulOrder struct {
	ent.Schema
}

func (MajsoulOrder) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "majsoul_orders"},
	}
}

func (MajsoulOrder) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("order_id").Immutable(),
		field.String("paipu_uuid").NotEmpty().MaxLen(64),
		field.Int("kyoku").NonNegative(),
		field.Int("honba").NonNegative(),
		field.String("model_type").NotEmpty().MaxLen(32),
	}
}

func (MajsoulOrder) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("order", NagaOrder.Type).
			Ref("segment").
			Field("order_id").
			Required().
			Unique().
			Immutable(),
	}
}

func (MajsoulOrder) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("paipu_uuid", "kyoku", "honba", "model_type").Unique(),
	}
}
