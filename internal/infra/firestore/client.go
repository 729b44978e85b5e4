// internal/infra/firestore/client.go
package firestoreinfra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

var ErrProjectIDEmpty = errors.New("firestore: project id is empty")

// ClientWrapper holds the Firestore client backing the claim guard store.
type ClientWrapper struct {
	Client    *firestore.Client
	ProjectID string
}

// NewClient connects to Firestore. An empty credentialsFile uses Application
// Default Credentials; FIRESTORE_EMULATOR_HOST is honored by the client library.
func NewClient(ctx context.Context, projectID string, credentialsFile string) (*ClientWrapper, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrProjectIDEmpty
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"component": "firestore",
		"project":   projectID,
		"emulator":  os.Getenv("FIRESTORE_EMULATOR_HOST") != "",
	}).Info("firestore connected")
	return &ClientWrapper{Client: client, ProjectID: projectID}, nil
}

func (cw *ClientWrapper) Close() error {
	if cw == nil || cw.Client == nil {
		return nil
	}
	return cw.Client.Close()
}
