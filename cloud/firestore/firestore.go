/*
Package firestore stores report-card backups in Cloud Firestore.

PURPOSE:
  Implements cloud.Client on top of Firebase. Each owner (one user
  account) has one document holding the latest backup; snapshot saves
  also add a copy to a subcollection.

STRUCTURE:
  - boletines/{owner}                      latest backup
  - boletines/{owner}/snapshots/{auto-id}  point-in-time copies

DOCUMENT FIELDS:
  fullData       backup JSON, as a string
  lastUpdate     server time of the write
  clientVersion  cloud.ClientVersion

LIMITS:
  Backups larger than MaxBackupBytes are refused with
  cloud.ErrBackupTooLarge before any request is sent.
*/
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/warp/report-engine/cloud"
)

const (
	collection = "boletines"
	snapshots  = "snapshots"
)

// MaxBackupBytes is the largest backup Save accepts. Firestore caps a
// document at 1 MiB including field names and metadata.
const MaxBackupBytes = 1<<20 - 16<<10

// record is the stored document.
type record struct {
	FullData      string    `firestore:"fullData"`
	LastUpdate    time.Time `firestore:"lastUpdate"`
	ClientVersion string    `firestore:"clientVersion"`
}

// Client is a Firestore-backed cloud.Client.
type Client struct {
	fs    *gcfirestore.Client
	owner string
	now   func() time.Time
}

var _ cloud.Client = (*Client)(nil)

// New connects with a service-account credentials file.
func New(ctx context.Context, credentialsFile, owner string) (*Client, error) {
	if owner == "" {
		return nil, errors.New("firestore: owner is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
	}
	return NewFromClient(fs, owner), nil
}

// NewFromClient wraps an existing Firestore client.
func NewFromClient(fs *gcfirestore.Client, owner string) *Client {
	return &Client{fs: fs, owner: owner, now: time.Now}
}

func (c *Client) doc() *gcfirestore.DocumentRef {
	return c.fs.Collection(collection).Doc(c.owner)
}

// Save writes the latest backup, plus a snapshot copy in snapshot mode.
func (c *Client) Save(ctx context.Context, backup []byte, mode cloud.SaveMode) (string, error) {
	if len(backup) > MaxBackupBytes {
		return "", fmt.Errorf("firestore save: %w: %d bytes, limit %d",
			cloud.ErrBackupTooLarge, len(backup), MaxBackupBytes)
	}
	rec := record{
		FullData:      string(backup),
		LastUpdate:    c.now().UTC(),
		ClientVersion: cloud.ClientVersion,
	}

	ref := c.doc()
	if _, err := ref.Set(ctx, rec); err != nil {
		return "", wrap("save", err)
	}
	if mode != cloud.SaveSnapshot {
		return ref.ID, nil
	}

	snap, _, err := ref.Collection(snapshots).Add(ctx, rec)
	if err != nil {
		return "", wrap("snapshot", err)
	}
	return snap.ID, nil
}

// Load reads the latest backup. A missing document is an empty result.
func (c *Client) Load(ctx context.Context) (cloud.LoadResult, error) {
	snap, err := c.doc().Get(ctx)
	if status.Code(err) == codes.NotFound {
		return cloud.LoadResult{Empty: true}, nil
	}
	if err != nil {
		return cloud.LoadResult{}, wrap("load", err)
	}

	var rec record
	if err := snap.DataTo(&rec); err != nil {
		return cloud.LoadResult{}, fmt.Errorf("firestore: decode %s: %w", snap.Ref.Path, err)
	}
	if rec.FullData == "" {
		return cloud.LoadResult{Empty: true}, nil
	}
	return cloud.LoadResult{Data: []byte(rec.FullData)}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.fs.Close()
}

// wrap marks connectivity failures as cloud.ErrUnavailable.
func wrap(op string, err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("firestore %s: %w: %v", op, cloud.ErrUnavailable, err)
	}
	return fmt.Errorf("firestore %s: %w", op, err)
}
