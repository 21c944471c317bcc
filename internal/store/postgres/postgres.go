// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	return queryCreateCampaign(ctx, s.db, c)
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	return queryGetCampaign(ctx, s.db, id)
}

func (s *PostgresStore) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	return queryListCampaigns(ctx, s.db)
}

func (s *PostgresStore) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	return queryUpdateCampaign(ctx, s.db, c)
}

func (s *PostgresStore) SaveTemplateGraph(ctx context.Context, templateID string, doc model.GraphDoc) error {
	return s.saveGraph(ctx, ownerTemplate, templateID, doc)
}

func (s *PostgresStore) GetTemplateGraph(ctx context.Context, templateID string) (model.GraphDoc, error) {
	return queryGetGraph(ctx, s.db, ownerTemplate, templateID)
}

func (s *PostgresStore) SaveCampaignGraph(ctx context.Context, campaignID string, doc model.GraphDoc) error {
	return s.saveGraph(ctx, ownerCampaign, campaignID, doc)
}

func (s *PostgresStore) GetCampaignGraph(ctx context.Context, campaignID string) (model.GraphDoc, error) {
	return queryGetGraph(ctx, s.db, ownerCampaign, campaignID)
}

// saveGraph replaces an owner's nodes and edges in one transaction so the
// engine never observes a half-written graph.
func (s *PostgresStore) saveGraph(ctx context.Context, kind ownerKind, ownerID string, doc model.GraphDoc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := queryReplaceGraph(ctx, tx, kind, ownerID, doc); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	return queryCreateTemplate(ctx, s.db, t)
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	return queryGetTemplate(ctx, s.db, id)
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]*model.Template, error) {
	return queryListTemplates(ctx, s.db)
}

func (s *PostgresStore) GetContentTemplate(ctx context.Context, name string) (*model.ContentTemplate, error) {
	return queryGetContentTemplate(ctx, s.db, name)
}

func (s *PostgresStore) CreateContact(ctx context.Context, c *model.Contact) error {
	return queryCreateContact(ctx, s.db, c)
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	return queryGetContact(ctx, s.db, id)
}

func (s *PostgresStore) ListContacts(ctx context.Context, campaignID string) ([]*model.Contact, error) {
	return queryListContacts(ctx, s.db, campaignID)
}

func (s *PostgresStore) UpdateContact(ctx context.Context, c *model.Contact) error {
	return queryUpdateContact(ctx, s.db, c)
}

func (s *PostgresStore) DeleteContact(ctx context.Context, id string) error {
	return queryDeleteContact(ctx, s.db, id)
}

func (s *PostgresStore) FindContactByPhoneDigits(ctx context.Context, digits string) (*model.Contact, error) {
	return queryFindContactByPhoneDigits(ctx, s.db, digits)
}

func (s *PostgresStore) SetIntercepted(ctx context.Context, contactID string, intercepted bool) error {
	return querySetIntercepted(ctx, s.db, contactID, intercepted)
}

func (s *PostgresStore) UpdateCursor(ctx context.Context, contactID, nodeKey string, enteredAt time.Time, state model.AutomationState) error {
	return queryUpdateCursor(ctx, s.db, contactID, nodeKey, enteredAt, state)
}

func (s *PostgresStore) EnsureConversation(ctx context.Context, conv *model.Conversation) (string, error) {
	return queryEnsureConversation(ctx, s.db, conv)
}

func (s *PostgresStore) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	return queryListConversations(ctx, s.db)
}

func (s *PostgresStore) AddMessage(ctx context.Context, m *model.Message) error {
	return queryAddMessage(ctx, s.db, m)
}

func (s *PostgresStore) GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	return queryGetMessages(ctx, s.db, conversationID)
}

func (s *PostgresStore) ListRecentMessages(ctx context.Context, limit int) ([]*model.Message, error) {
	return queryListRecentMessages(ctx, s.db, limit)
}

func (s *PostgresStore) RecordContactEvent(ctx context.Context, ev *model.ContactEvent) error {
	return queryRecordContactEvent(ctx, s.db, ev)
}

func (s *PostgresStore) ListContactEvents(ctx context.Context, contactID string, since time.Time) ([]*model.ContactEvent, error) {
	return queryListContactEvents(ctx, s.db, contactID, since)
}

func (s *PostgresStore) CountContactsByStatus(ctx context.Context, campaignID string) (map[model.Status]int, error) {
	return queryCountContactsByStatus(ctx, s.db, campaignID)
}
