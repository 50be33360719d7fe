package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names shared by the stores
const (
	OrganizationsTable = "organizations"
	UsersTable         = "users"
	AssetsTable        = "assets"
	TicketsTable       = "tickets"
	AuditLogsTable     = "audit_logs"
)

const textSize = 2147483647

var (
	// OrganizationsColumns holds the columns for the "organizations" table.
	OrganizationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "name", Type: field.TypeString},
		{Name: "slug", Type: field.TypeString, Unique: true},
		{Name: "subscription_tier", Type: field.TypeEnum, Enums: []string{"FREE", "PRO", "ENTERPRISE"}, Default: "FREE"},
		{Name: "subscription_status", Type: field.TypeString, Default: "active"},
		{Name: "current_period_end", Type: field.TypeTime, Nullable: true},
		{Name: "stripe_customer_id", Type: field.TypeString, Unique: true, Nullable: true},
		{Name: "stripe_subscription_id", Type: field.TypeString, Unique: true, Nullable: true},
		{Name: "billing_event_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// OrganizationsTableSchema holds the schema information for the "organizations" table.
	OrganizationsTableSchema = &schema.Table{
		Name:       OrganizationsTable,
		Columns:    OrganizationsColumns,
		PrimaryKey: []*schema.Column{OrganizationsColumns[0]},
	}

	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "name", Type: field.TypeString},
		{Name: "email", Type: field.TypeString, Unique: true},
		{Name: "password_hash", Type: field.TypeString},
		{Name: "role", Type: field.TypeEnum, Enums: []string{"ADMIN", "EMPLOYEE"}, Default: "EMPLOYEE"},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "organization_id", Type: field.TypeInt, Nullable: true},
	}
	// UsersTableSchema holds the schema information for the "users" table.
	UsersTableSchema = &schema.Table{
		Name:       UsersTable,
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "users_organizations_users",
				Columns:    []*schema.Column{UsersColumns[7]},
				RefColumns: []*schema.Column{OrganizationsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "user_organization_id_role",
				Unique:  false,
				Columns: []*schema.Column{UsersColumns[7], UsersColumns[4]},
			},
		},
	}

	// AssetsColumns holds the columns for the "assets" table.
	AssetsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "name", Type: field.TypeString},
		{Name: "serial_number", Type: field.TypeString, Unique: true},
		{Name: "type", Type: field.TypeString},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"OPERATIONAL", "REPAIR", "RETIRED"}, Default: "OPERATIONAL"},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "organization_id", Type: field.TypeInt},
	}
	// AssetsTableSchema holds the schema information for the "assets" table.
	AssetsTableSchema = &schema.Table{
		Name:       AssetsTable,
		Columns:    AssetsColumns,
		PrimaryKey: []*schema.Column{AssetsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "assets_organizations_assets",
				Columns:    []*schema.Column{AssetsColumns[7]},
				RefColumns: []*schema.Column{OrganizationsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "asset_organization_id_name",
				Unique:  false,
				Columns: []*schema.Column{AssetsColumns[7], AssetsColumns[1]},
			},
		},
	}

	// TicketsColumns holds the columns for the "tickets" table.
	TicketsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "title", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Size: textSize},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"OPEN", "CLOSED"}, Default: "OPEN"},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeInt},
		{Name: "asset_id", Type: field.TypeInt, Nullable: true},
		{Name: "organization_id", Type: field.TypeInt},
	}
	// TicketsTableSchema holds the schema information for the "tickets" table.
	TicketsTableSchema = &schema.Table{
		Name:       TicketsTable,
		Columns:    TicketsColumns,
		PrimaryKey: []*schema.Column{TicketsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "tickets_users_tickets",
				Columns:    []*schema.Column{TicketsColumns[6]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "tickets_assets_tickets",
				Columns:    []*schema.Column{TicketsColumns[7]},
				RefColumns: []*schema.Column{AssetsColumns[0]},
				OnDelete:   schema.SetNull,
			},
			{
				Symbol:     "tickets_organizations_tickets",
				Columns:    []*schema.Column{TicketsColumns[8]},
				RefColumns: []*schema.Column{OrganizationsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{
				// At most one OPEN ticket per asset within an organization.
				Name:    "ticket_open_asset_organization",
				Unique:  true,
				Columns: []*schema.Column{TicketsColumns[7], TicketsColumns[8]},
				Annotation: &entsql.IndexAnnotation{
					Where: "status = 'OPEN'",
				},
			},
			{
				Name:    "ticket_organization_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{TicketsColumns[8], TicketsColumns[4]},
			},
		},
	}

	// AuditLogsColumns holds the columns for the "audit_logs" table.
	AuditLogsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "action", Type: field.TypeString},
		{Name: "resource_type", Type: field.TypeString, Nullable: true},
		{Name: "resource_id", Type: field.TypeString, Nullable: true},
		{Name: "ip_address", Type: field.TypeString, Nullable: true},
		{Name: "user_agent", Type: field.TypeString, Nullable: true},
		{Name: "metadata", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeInt, Nullable: true},
		{Name: "organization_id", Type: field.TypeInt},
	}
	// AuditLogsTableSchema holds the schema information for the "audit_logs" table.
	AuditLogsTableSchema = &schema.Table{
		Name:       AuditLogsTable,
		Columns:    AuditLogsColumns,
		PrimaryKey: []*schema.Column{AuditLogsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "audit_logs_users_audit_logs",
				Columns:    []*schema.Column{AuditLogsColumns[8]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.SetNull,
			},
			{
				Symbol:     "audit_logs_organizations_audit_logs",
				Columns:    []*schema.Column{AuditLogsColumns[9]},
				RefColumns: []*schema.Column{OrganizationsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "auditlog_organization_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{AuditLogsColumns[9], AuditLogsColumns[7]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		OrganizationsTableSchema,
		UsersTableSchema,
		AssetsTableSchema,
		TicketsTableSchema,
		AuditLogsTableSchema,
	}
)

func init() {
	UsersTableSchema.ForeignKeys[0].RefTable = OrganizationsTableSchema
	AssetsTableSchema.ForeignKeys[0].RefTable = OrganizationsTableSchema
	TicketsTableSchema.ForeignKeys[0].RefTable = UsersTableSchema
	TicketsTableSchema.ForeignKeys[1].RefTable = AssetsTableSchema
	TicketsTableSchema.ForeignKeys[2].RefTable = OrganizationsTableSchema
	AuditLogsTableSchema.ForeignKeys[0].RefTable = UsersTableSchema
	AuditLogsTableSchema.ForeignKeys[1].RefTable = OrganizationsTableSchema
}

// Migrate creates or upgrades all tables, columns and indexes
func (c *Client) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(c.Driver)
	if err != nil {
		return fmt.Errorf("failed preparing migration: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("failed creating schema resources: %w", err)
	}
	return nil
}
