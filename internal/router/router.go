package router

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/callcenter-console/internal/models"
)

// Options configures a Router.
type Options struct {
	Driver           string
	DSN              string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	DispatchInterval time.Duration // 0 disables the queued call dispatcher
	BcryptCost       int
	SkipMigrations   bool

	// Seed account created when the users table is empty.
	AdminUsername string
	AdminPassword string
	AdminFullName string
}

// Router owns the users and calls tables and routes incoming calls to
// online operators.
type Router struct {
	db         *sql.DB
	dialect    dialect
	bcryptCost int
	now        func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Open connects to the database described by opts and builds a Router on it.
func Open(opts Options) (*Router, error) {
	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Set connection pool settings
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	r, err := NewRouter(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// NewRouter builds a Router on an already opened database.
func NewRouter(db *sql.DB, opts Options) (*Router, error) {
	d, err := lookupDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	r := &Router{
		db:         db,
		dialect:    d,
		bcryptCost: cost,
		now:        func() time.Time { return time.Now().UTC() },
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if !opts.SkipMigrations {
		if err := r.createTables(); err != nil {
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}

	if opts.AdminUsername != "" && opts.AdminPassword != "" {
		if err := r.bootstrapAdmin(context.Background(), opts); err != nil {
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	if opts.DispatchInterval > 0 {
		go r.dispatchRoutine(opts.DispatchInterval)
	} else {
		close(r.done)
	}

	return r, nil
}

func (r *Router) createTables() error {
	for _, query := range r.dialect.schema {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) bootstrapAdmin(ctx context.Context, opts Options) error {
	var count int
	if err := r.queryRow(ctx, r.db, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	fullName := opts.AdminFullName
	if fullName == "" {
		fullName = "Administrator"
	}
	id, err := r.CreateUser(ctx, models.CreateUserRequest{
		Username: opts.AdminUsername,
		Password: opts.AdminPassword,
		FullName: fullName,
		Role:     models.RoleSuperAdmin,
	})
	if err != nil {
		return err
	}
	log.Printf("[ROUTER] Seeded super admin %q (id=%d)", opts.AdminUsername, id)
	return nil
}

func (r *Router) dispatchRoutine(interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			n, err := r.DispatchQueued(context.Background())
			if err != nil {
				log.Printf("[ROUTER] Error dispatching queued calls: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[ROUTER] Dispatched %d queued calls", n)
			}
		}
	}
}

// Close stops the dispatcher and closes the database.
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.done
		if r.db != nil {
			r.db.Close()
		}
	})
}
