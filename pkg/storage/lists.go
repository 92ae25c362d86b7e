package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3"
	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/ordering"
)

// Lists returns all lists in sidebar order.
func (s *Store) Lists(ctx context.Context) ([]core.List, error) {
	return s.lists(ctx, s.db)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) lists(ctx context.Context, q querier) ([]core.List, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, order_key, created_at FROM lists ORDER BY order_key, id`)
	if err != nil {
		return nil, fmt.Errorf("querying lists: %w", err)
	}
	defer s.closeRows(rows)

	lists := []core.List{}
	for rows.Next() {
		var l core.List
		if err := rows.Scan(&l.ID, &l.Name, &l.OrderKey, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func orderingItems(lists []core.List) []ordering.Item {
	items := make([]ordering.Item, len(lists))
	for i, l := range lists {
		items[i] = ordering.Item{ID: strconv.FormatInt(l.ID, 10), Key: l.OrderKey}
	}
	ordering.Sort(items)
	return items
}

func applyOrderUpdates(ctx context.Context, tx *sql.Tx, updates []ordering.Item) error {
	for _, u := range updates {
		id, err := strconv.ParseInt(u.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid list id %q: %w", u.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE lists SET order_key = ? WHERE id = ?`, u.Key, id); err != nil {
			return fmt.Errorf("reordering list %d: %w", id, err)
		}
	}
	return nil
}

// CreateList appends a new list at the end of the sidebar.
func (s *Store) CreateList(ctx context.Context, name string) (core.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.List{}, fmt.Errorf("list name must not be empty")
	}

	list := core.List{Name: name, CreatedAt: time.Now().UnixMilli()}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.lists(ctx, tx)
		if err != nil {
			return err
		}
		list.OrderKey = ordering.Push(orderingItems(existing), "").Create.Key

		res, err := tx.ExecContext(ctx, `INSERT INTO lists (name, order_key, created_at) VALUES (?, ?, ?)`,
			list.Name, list.OrderKey, list.CreatedAt)
		if err != nil {
			return fmt.Errorf("creating list %q: %w", name, err)
		}
		list.ID, err = res.LastInsertId()
		return err
	})
	return list, err
}

// RestoreList inserts l keeping its id and order key.
func (s *Store) RestoreList(ctx context.Context, l core.List) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lists (id, name, order_key, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, order_key = excluded.order_key
	`, l.ID, l.Name, l.OrderKey, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("restoring list %d: %w", l.ID, err)
	}
	return nil
}

// MoveList moves list id to position index (0 based) in the sidebar.
// Siblings are only renumbered when there is no room left between the new
// neighbours.
func (s *Store) MoveList(ctx context.Context, id int64, index int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.lists(ctx, tx)
		if err != nil {
			return err
		}
		changes, err := ordering.Move(orderingItems(existing), strconv.FormatInt(id, 10), index)
		if err != nil {
			return fmt.Errorf("list %d: %w", id, ErrNotFound)
		}
		return applyOrderUpdates(ctx, tx, append(changes.Updates, changes.Create))
	})
}

// AddPageToList adds page pageID to list listID. Adding twice is a no-op.
func (s *Store) AddPageToList(ctx context.Context, listID int64, pageID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO page_list_entries (list_id, page_id, created_at) VALUES (?, ?, ?)
	`, listID, pageID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("adding %s to list %d: %w", pageID, listID, mapConstraint(err))
	}
	return nil
}

// AddAnnotationToList adds an annotation to list listID.
func (s *Store) AddAnnotationToList(ctx context.Context, listID int64, annotationID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO annotation_list_entries (list_id, annotation_id, created_at) VALUES (?, ?, ?)
	`, listID, annotationID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("adding annotation %s to list %d: %w", annotationID, listID, mapConstraint(err))
	}
	return nil
}

// mapConstraint turns foreign key failures into ErrNotFound.
func mapConstraint(err error) error {
	if errors.Is(err, sqlite3.CONSTRAINT_FOREIGNKEY) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}
