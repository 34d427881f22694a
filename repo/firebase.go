package repo

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

const firebaseRoot = "rosterbot"

// FirebaseStore keeps bot state in a Firebase Realtime Database under a
// single root node, one child per key.
type FirebaseStore struct {
	app    *firebase.App
	client *db.Client
	root   string
}

// NewFirebaseStore creates a store backed by the Realtime Database at
// databaseURL. An empty serviceAccountKeyPath uses application default
// credentials.
func NewFirebaseStore(ctx context.Context, serviceAccountKeyPath string, databaseURL string) (*FirebaseStore, error) {
	var opts []option.ClientOption
	if serviceAccountKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountKeyPath))
	}

	config := &firebase.Config{
		DatabaseURL: databaseURL,
	}
	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	return &FirebaseStore{
		app:    app,
		client: client,
		root:   firebaseRoot,
	}, nil
}

// Realtime Database keys may not contain . $ # [ ] or /.
var firebaseKeyReplacer = strings.NewReplacer(".", "_", "$", "_", "#", "_", "[", "_", "]", "_", "/", "_")

func (fs *FirebaseStore) ref(key string) *db.Ref {
	return fs.client.NewRef(fs.root).Child(firebaseKeyReplacer.Replace(key))
}

func (fs *FirebaseStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value *string
	if err := fs.ref(key).Get(ctx, &value); err != nil {
		return "", false, fmt.Errorf("error reading %q: %w", key, err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (fs *FirebaseStore) Set(ctx context.Context, key, value string) error {
	if err := fs.ref(key).Set(ctx, value); err != nil {
		return fmt.Errorf("error writing %q: %w", key, err)
	}
	return nil
}

func (fs *FirebaseStore) Delete(ctx context.Context, key string) error {
	if err := fs.ref(key).Delete(ctx); err != nil {
		return fmt.Errorf("error deleting %q: %w", key, err)
	}
	return nil
}

// Close is a no-op, the database client holds no long lived connection.
func (fs *FirebaseStore) Close() error {
	return nil
}
