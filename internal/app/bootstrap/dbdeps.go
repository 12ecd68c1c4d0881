// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app. The Mongo
// fields are nil when mongo_uri is blank.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// svc is allocated by ConnectDB and filled in by Startup; hooks receive
	// DBDeps by value, so the pointer is how later hooks see it.
	svc *services
}
