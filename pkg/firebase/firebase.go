package firebase

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app, auth client and the media bucket
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
	Bucket      *storage.BucketHandle
}

// InitFirebase initializes the Firebase application, the authentication
// client and, when bucketName is set, a handle on the media bucket used for
// signing avatar and cover URLs.
func InitFirebase(ctx context.Context, credentialsPath, bucketName string) (*App, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}

	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	firebaseApp, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	app := &App{FirebaseApp: firebaseApp, AuthClient: authClient}

	if bucketName != "" {
		storageClient, err := storage.NewClient(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("error initializing storage client: %w", err)
		}
		app.Bucket = storageClient.Bucket(bucketName)
	}

	log.Println("Firebase app and auth client initialized successfully!")
	return app, nil
}
