package gormfinder_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Company struct {
	ID   int    `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
}

type User struct {
	ID        int            `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Age       int            `gorm:"not null" json:"age"`
	Category  string         `json:"category"`
	Email     *string        `json:"email"`
	Birthday  datatypes.Date `json:"birthday"`
	CompanyID int            `json:"companyId"`
	Company   *Company       `json:"company"`
	Orders    []*Order       `json:"orders"`
	Tags      []*Tag         `gorm:"many2many:user_tags" json:"tags"`
}

type Order struct {
	ID     int     `gorm:"primaryKey" json:"id"`
	UserID int     `gorm:"not null" json:"userId"`
	Amount float64 `gorm:"not null" json:"amount"`
	Items  []*Item `json:"items"`
}

type Item struct {
	ID      int    `gorm:"primaryKey" json:"id"`
	OrderID int    `gorm:"not null" json:"orderId"`
	SKU     string `gorm:"not null" json:"sku"`
}

type Tag struct {
	ID   int    `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
}

// Employee references its own table both ways.
type Employee struct {
	ID        int         `gorm:"primaryKey" json:"id"`
	Name      string      `gorm:"not null" json:"name"`
	ManagerID *int        `json:"managerId"`
	Manager   *Employee   `json:"manager"`
	Reports   []*Employee `gorm:"foreignKey:ManagerID" json:"reports"`
}

type Author struct {
	ID    int     `gorm:"primaryKey" json:"id"`
	Name  string  `gorm:"not null" json:"name"`
	Posts []*Post `json:"posts"`
}

type Post struct {
	ID        int            `gorm:"primaryKey" json:"id"`
	AuthorID  int            `gorm:"not null" json:"authorId"`
	Title     string         `gorm:"not null" json:"title"`
	DeletedAt gorm.DeletedAt `json:"deletedAt"`
}

// UserName is a projection of User.
type UserName struct {
	ID   int
	Name string
}

func ptr[T any](v T) *T { return &v }

// dryRunDB builds postgres statements without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=postgres password=postgres dbname=postgres port=5432 sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

// probePool records the isolation level of every transaction it begins.
type probePool struct {
	*sql.DB

	mu     sync.Mutex
	levels []sql.IsolationLevel
}

func (p *probePool) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	level := sql.LevelDefault
	if opts != nil {
		level = opts.Isolation
	}
	p.mu.Lock()
	p.levels = append(p.levels, level)
	p.mu.Unlock()
	return p.DB.BeginTx(ctx, opts)
}

func (p *probePool) Levels() []sql.IsolationLevel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sql.IsolationLevel(nil), p.levels...)
}

func (p *probePool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels = nil
}

// newSQLite opens an in-memory database on a single connection and migrates the test models.
func newSQLite(t *testing.T) (*gorm.DB, *probePool) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	pool := &probePool{DB: sqlDB}
	db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: pool}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Company{}, &User{}, &Order{}, &Item{}, &Tag{}, &Employee{}, &Author{}, &Post{}))
	return db, pool
}

// seed inserts two companies, five users with orders and tags.
func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	companies := []*Company{
		{ID: 1, Name: "Acme"},
		{ID: 2, Name: "Globex"},
	}
	require.NoError(t, db.Create(&companies).Error)

	tags := []*Tag{
		{ID: 1, Name: "vip"},
		{ID: 2, Name: "new"},
	}
	require.NoError(t, db.Create(&tags).Error)

	users := []*User{
		{ID: 1, Name: "alice", Age: 30, Category: "A", Email: ptr("alice@example.com"), CompanyID: 1, Tags: []*Tag{tags[0]}},
		{ID: 2, Name: "bob", Age: 25, Category: "A", CompanyID: 1},
		{ID: 3, Name: "carol", Age: 35, Category: "B", Email: ptr("carol@example.com"), CompanyID: 2, Tags: []*Tag{tags[0], tags[1]}},
		{ID: 4, Name: "dave", Age: 25, Category: "B", CompanyID: 2},
		{ID: 5, Name: "erin_x", Age: 40, Category: "C", CompanyID: 2, Tags: []*Tag{tags[1]}},
	}
	require.NoError(t, db.Create(&users).Error)

	orders := []*Order{
		{ID: 1, UserID: 1, Amount: 50, Items: []*Item{{ID: 1, SKU: "pen"}}},
		{ID: 2, UserID: 1, Amount: 150, Items: []*Item{{ID: 2, SKU: "book"}}},
		{ID: 3, UserID: 3, Amount: 20},
		{ID: 4, UserID: 4, Amount: 300},
	}
	require.NoError(t, db.Create(&orders).Error)
}
