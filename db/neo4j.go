// db/neo4j.go
package db

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/taskhive/api/logging"
)

// NewNeo4jDriver builds the shared driver for the primary datastore and
// verifies connectivity before returning it. The driver is injected into the
// DAOs rather than held as a package global.
func NewNeo4jDriver() (neo4j.Driver, error) {
	uri := viper.GetString("neo4j.uri")
	logger.Info("Connecting to Neo4j at URI", zap.String("uri", uri))

	driver, err := neo4j.NewDriver(
		uri,
		neo4j.BasicAuth(
			viper.GetString("neo4j.username"),
			viper.GetString("neo4j.password"),
			"",
		),
		func(c *neo4j.Config) {
			c.MaxConnectionLifetime = 30 * time.Minute
			c.MaxConnectionPoolSize = 50
			c.Log = neo4j.ConsoleLogger(neo4j.ERROR)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(); err != nil {
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	logger.Info("Successfully connected to Neo4j")
	return driver, nil
}

func CloseNeo4j(driver neo4j.Driver) {
	if driver == nil {
		return
	}
	if err := driver.Close(); err != nil {
		logger.Error("Error closing Neo4j connection", zap.Error(err))
	} else {
		logger.Info("Neo4j connection closed successfully")
	}
}
