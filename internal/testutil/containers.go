// containers.go
//
// Split sheet agreements with collaborative e-signatures for Saldaña Music
// Copyright (c) 2026 Saldaña Music LLC <legal@saldanamusic.com> (https://www.saldanamusic.com)
//
// This file is part of splitsheets.
// splitsheets is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// splitsheets is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with splitsheets.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Saldaña Music LLC <legal@saldanamusic.com> (https://www.saldanamusic.com)"
//    in this material, copies, or source code of derived works.

package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/saldanamusic/splitsheets/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	containerUser     = "splitsheets"
	containerPassword = "Spl1t-Sheets-Test!"
	containerDatabase = "splitsheets"
)

type containerSpec struct {
	image    string
	port     string
	user     string
	database string
	env      map[string]string
	waitFor  func(nat.Port) wait.Strategy
}

func specFor(dbType string) (containerSpec, error) {
	listening := func(p nat.Port) wait.Strategy {
		return wait.ForListeningPort(p).WithStartupTimeout(90 * time.Second)
	}

	switch dbType {
	case "postgres", "postgresql":
		return containerSpec{
			image:    "postgres:16-alpine",
			port:     "5432",
			user:     containerUser,
			database: containerDatabase,
			env: map[string]string{
				"POSTGRES_USER":     containerUser,
				"POSTGRES_PASSWORD": containerPassword,
				"POSTGRES_DB":       containerDatabase,
			},
			waitFor: func(p nat.Port) wait.Strategy {
				return wait.ForAll(
					wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
					listening(p),
				)
			},
		}, nil
	case "mysql":
		return containerSpec{
			image:    "mysql:8.4",
			port:     "3306",
			user:     containerUser,
			database: containerDatabase,
			env: map[string]string{
				"MYSQL_ROOT_PASSWORD": containerPassword,
				"MYSQL_DATABASE":      containerDatabase,
				"MYSQL_USER":          containerUser,
				"MYSQL_PASSWORD":      containerPassword,
			},
			waitFor: listening,
		}, nil
	case "mariadb":
		return containerSpec{
			image:    "mariadb:11",
			port:     "3306",
			user:     containerUser,
			database: containerDatabase,
			env: map[string]string{
				"MARIADB_ROOT_PASSWORD": containerPassword,
				"MARIADB_DATABASE":      containerDatabase,
				"MARIADB_USER":          containerUser,
				"MARIADB_PASSWORD":      containerPassword,
			},
			waitFor: listening,
		}, nil
	case "sqlserver", "mssql":
		return containerSpec{
			image:    "mcr.microsoft.com/mssql/server:2022-latest",
			port:     "1433",
			user:     "sa",
			database: "master",
			env: map[string]string{
				"ACCEPT_EULA":       "Y",
				"MSSQL_SA_PASSWORD": containerPassword,
			},
			waitFor: func(p nat.Port) wait.Strategy {
				return wait.ForAll(
					wait.ForLog("SQL Server is now ready for client connections"),
					listening(p),
				)
			},
		}, nil
	}
	return containerSpec{}, fmt.Errorf("no container image for DB_TYPE %s", dbType)
}

// DatabaseContainer is a throwaway database server and the configuration
// that reaches it from the host.
type DatabaseContainer struct {
	Container testcontainers.Container
	Config    *config.Config
}

// Terminate stops and removes the container.
func (d *DatabaseContainer) Terminate(ctx context.Context) error {
	if d == nil || d.Container == nil {
		return nil
	}
	return d.Container.Terminate(ctx)
}

// StartDatabase starts a database server of dbType. DB_IMAGE overrides the
// default image.
func StartDatabase(ctx context.Context, dbType string) (*DatabaseContainer, error) {
	spec, err := specFor(dbType)
	if err != nil {
		return nil, err
	}
	if image := os.Getenv("DB_IMAGE"); image != "" {
		spec.image = image
	}

	port, err := nat.NewPort("tcp", spec.port)
	if err != nil {
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        spec.image,
			ExposedPorts: []string{string(port)},
			Env:          spec.env,
			WaitingFor:   spec.waitFor(port),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.image, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, err
	}

	return &DatabaseContainer{
		Container: c,
		Config: &config.Config{
			AppEnv:            "test",
			DBType:            dbType,
			DBHost:            host,
			DBPort:            mapped.Port(),
			DBDatabase:        spec.database,
			DBUser:            spec.user,
			DBPassword:        containerPassword,
			DBConnectionLimit: 10,
		},
	}, nil
}
