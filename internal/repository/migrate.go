package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

const (
	ordersTable        = "naga_orders"
	majsoulOrdersTable = "majsoul_orders"
	paipuTable         = "majsoul_paipu"
	settingsTable      = "settings"
)

var (
	// NagaOrdersColumns holds the columns for the "naga_orders" table.
	NagaOrdersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "haihu_id", Type: field.TypeString, Size: 128},
		{Name: "model_type", Type: field.TypeString, Size: 32},
		{Name: "source", Type: field.TypeString, Size: 16},
		{Name: "customer_id", Type: field.TypeString, Size: 128},
		{Name: "cost_np", Type: field.TypeInt64},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "report", Type: field.TypeString, Size: 2147483647, Nullable: true},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// NagaOrdersTable holds the schema information for the "naga_orders" table.
	NagaOrdersTable = &schema.Table{
		Name:       ordersTable,
		Columns:    NagaOrdersColumns,
		PrimaryKey: []*schema.Column{NagaOrdersColumns[0]},
		Indexes: []*schema.Index{
			{Name: "nagaorder_haihu_id_model_type", Unique: true, Columns: []*schema.Column{NagaOrdersColumns[1], NagaOrdersColumns[2]}},
			{Name: "nagaorder_created_at", Unique: false, Columns: []*schema.Column{NagaOrdersColumns[8]}},
		},
	}
	// MajsoulOrdersColumns holds the columns for the "majsoul_orders" table.
	MajsoulOrdersColumns = []*schema.Column{
		{Name: "order_id", Type: field.TypeInt64},
		{Name: "paipu_uuid", Type: field.TypeString, Size: 64},
		{Name: "kyoku", Type: field.TypeInt},
		{Name: "honba", Type: field.TypeInt},
		{Name: "model_type", Type: field.TypeString, Size: 32},
	}
	// MajsoulOrdersTable holds the schema information for the "majsoul_orders" table.
	MajsoulOrdersTable = &schema.Table{
		Name:       majsoulOrdersTable,
		Columns:    MajsoulOrdersColumns,
		PrimaryKey: []*schema.Column{MajsoulOrdersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "majsoul_orders_naga_orders_order",
				Columns:    []*schema.Column{MajsoulOrdersColumns[0]},
				RefColumns: []*schema.Column{NagaOrdersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "majsoulorder_segment", Unique: true, Columns: []*schema.Column{MajsoulOrdersColumns[1], MajsoulOrdersColumns[2], MajsoulOrdersColumns[3], MajsoulOrdersColumns[4]}},
		},
	}
	// MajsoulPaipuColumns holds the columns for the "majsoul_paipu" table.
	MajsoulPaipuColumns = []*schema.Column{
		{Name: "paipu_uuid", Type: field.TypeString, Size: 64},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
	}
	// MajsoulPaipuTable holds the schema information for the "majsoul_paipu" table.
	MajsoulPaipuTable = &schema.Table{
		Name:       paipuTable,
		Columns:    MajsoulPaipuColumns,
		PrimaryKey: []*schema.Column{MajsoulPaipuColumns[0]},
	}
	// SettingsColumns holds the columns for the "settings" table.
	SettingsColumns = []*schema.Column{
		{Name: "name", Type: field.TypeString, Size: 64},
		{Name: "value", Type: field.TypeString, Size: 2147483647},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// SettingsTable holds the schema information for the "settings" table.
	SettingsTable = &schema.Table{
		Name:       settingsTable,
		Columns:    SettingsColumns,
		PrimaryKey: []*schema.Column{SettingsColumns[0]},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		NagaOrdersTable,
		MajsoulOrdersTable,
		MajsoulPaipuTable,
		SettingsTable,
	}
)

func init() {
	MajsoulOrdersTable.ForeignKeys[0].RefTable = NagaOrdersTable
}

// Migrate creates or upgrades the schema in place.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(d.drv, schema.WithForeignKeys(true))
	if err != nil {
		return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		d.logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
	}
	d.logger.Info("schema migrated", "dialect", d.Dialect(), "tables", len(Tables))
	return nil
}
