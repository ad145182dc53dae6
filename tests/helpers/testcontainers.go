// testcontainers.go
//
// Part of docsubmit, the document submission editing gateway.
//
// docsubmit is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, either version 3 of the License, or (at your
// option) any later version. docsubmit is distributed in the hope that it
// will be useful, but WITHOUT ANY WARRANTY; without even the implied warranty
// of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.

package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openlms/docsubmit/internal/config"
)

const (
	dbName     = "docsubmit_test"
	dbUser     = "testuser"
	dbPassword = "testpass"
)

// MariaDBContainer is a running database container plus the connection
// parameters tests need to reach it.
type MariaDBContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// StartMariaDB starts a MariaDB container and waits until it accepts
// connections. The image can be overridden with DB_IMAGE.
func StartMariaDB(ctx context.Context) (*MariaDBContainer, error) {
	image := os.Getenv("DB_IMAGE")
	if image == "" {
		image = "mariadb:11"
	}

	tcpPort, err := nat.NewPort("tcp", "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{string(tcpPort)},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "rootpass",
				"MYSQL_DATABASE":      dbName,
				"MYSQL_USER":          dbUser,
				"MYSQL_PASSWORD":      dbPassword,
			},
			WaitingFor: wait.ForListeningPort(tcpPort).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start MariaDB: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, tcpPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	mc := &MariaDBContainer{Container: container, Host: host, Port: port.Port()}
	if err := mc.waitReady(); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return mc, nil
}

// DBConfig returns the database fields for connecting to the container.
func (mc *MariaDBContainer) DBConfig() *config.Config {
	return &config.Config{
		DBType:            "mysql",
		DBHost:            mc.Host,
		DBPort:            mc.Port,
		DBDatabase:        dbName,
		DBUser:            dbUser,
		DBPassword:        dbPassword,
		DBConnectionLimit: 5,
	}
}

// Terminate stops the container.
func (mc *MariaDBContainer) Terminate(ctx context.Context) error {
	return mc.Container.Terminate(ctx)
}

// waitReady polls until the database answers an actual connection, not just
// a TCP accept.
func (mc *MariaDBContainer) waitReady() error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", dbUser, dbPassword, mc.Host, mc.Port, dbName)

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		db, err := sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		time.Sleep(time.Second)
	}

	return fmt.Errorf("database never became ready at %s:%s", mc.Host, mc.Port)
}
