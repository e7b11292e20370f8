// seed-legacy-sample creates the legacy practice-management tables on a
// local SQL Server instance and fills them with a small clinical fixture
// set, so import and parity runs can be rehearsed without touching a real
// practice database.
//
// The fixture includes rows that exercise the drop taxonomy: mixed date
// shapes, a sub-penny fee and a patient code with no destination mapping.
//
// Usage: go run ./scripts/seed-legacy-sample -server localhost -database Clinical
//
// The SQL Server password is read from the LEGACY_PASSWORD environment
// variable. Point this only at a rehearsal instance; it creates and
// truncates tables.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/url"
	"os"

	_ "github.com/microsoft/go-mssqldb"
)

var schema = []string{
	`IF OBJECT_ID('dbo.RestorativeTreatment', 'U') IS NULL
	CREATE TABLE dbo.RestorativeTreatment (
		TreatmentID   BIGINT       NOT NULL PRIMARY KEY,
		PatientCode   BIGINT       NOT NULL,
		TreatmentDate VARCHAR(32)  NULL,
		CompletedDate VARCHAR(32)  NULL,
		Tooth         VARCHAR(8)   NULL,
		Surfaces      VARCHAR(16)  NULL,
		Description   VARCHAR(255) NULL,
		Fee           DECIMAL(10,4) NULL
	)`,
	`IF OBJECT_ID('dbo.TreatmentPlan', 'U') IS NULL
	CREATE TABLE dbo.TreatmentPlan (
		PlanID      BIGINT       NOT NULL PRIMARY KEY,
		PatientCode BIGINT       NOT NULL,
		PlanDate    VARCHAR(32)  NULL,
		Title       VARCHAR(255) NULL,
		Status      VARCHAR(32)  NULL
	)`,
	`IF OBJECT_ID('dbo.TreatmentPlanItem', 'U') IS NULL
	CREATE TABLE dbo.TreatmentPlanItem (
		ItemID      BIGINT       NOT NULL PRIMARY KEY,
		PlanID      BIGINT       NOT NULL,
		Code        VARCHAR(16)  NULL,
		Description VARCHAR(255) NULL,
		Tooth       VARCHAR(8)   NULL,
		Fee         DECIMAL(10,4) NULL
	)`,
}

var fixtures = []string{
	`TRUNCATE TABLE dbo.RestorativeTreatment`,
	`TRUNCATE TABLE dbo.TreatmentPlan`,
	`TRUNCATE TABLE dbo.TreatmentPlanItem`,

	// Clean rows across the date shapes the legacy system accumulated.
	`INSERT INTO dbo.RestorativeTreatment VALUES
		(1010387, 4711, '2019-03-14', '2019-03-20', 'UL6', 'MOD', 'Amalgam restoration', 86.5000),
		(1010388, 4711, '14/03/2019', NULL, 'UR4', 'O', 'Composite restoration', 120.0000),
		(1010389, 4712, '2020-06-01 00:00:00', '2020-06-15', 'LL7', 'DO', 'Inlay', 240.2500)`,

	// Rejection fodder: unparseable date, sub-penny fee and an unmapped
	// patient code.
	`INSERT INTO dbo.RestorativeTreatment VALUES
		(1010390, 4711, 'not a date', NULL, 'UL1', 'B', 'Veneer', 300.0000),
		(1010391, 4712, '2021-01-05', NULL, 'LR6', 'O', 'Crown prep', 12.5050),
		(1010392, 999999, '2021-02-10', NULL, 'UL2', 'M', 'Composite restoration', 95.0000)`,

	`INSERT INTO dbo.TreatmentPlan VALUES
		(300, 4711, '2020-09-01', 'Upper restoration plan', 'accepted'),
		(301, 4712, '01/11/2020', 'Hygiene programme', 'proposed')`,

	`INSERT INTO dbo.TreatmentPlanItem VALUES
		(1, 300, 'D2391', 'One surface', 'UL6', 120.0000),
		(2, 300, 'D2392', 'Two surfaces', 'UL6', 155.5000),
		(3, 301, 'D1110', 'Prophylaxis', NULL, 65.0000)`,
}

func main() {
	server := flag.String("server", "localhost", "SQL Server host")
	port := flag.Int("port", 1433, "SQL Server port")
	database := flag.String("database", "Clinical", "target database")
	user := flag.String("user", "sa", "SQL Server login")
	flag.Parse()

	password := os.Getenv("LEGACY_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "LEGACY_PASSWORD environment variable is required")
		os.Exit(1)
	}

	dsn := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(*user, password),
		Host:     fmt.Sprintf("%s:%d", *server, *port),
		RawQuery: url.Values{"database": {*database}, "encrypt": {"disable"}}.Encode(),
	}

	db, err := sql.Open("sqlserver", dsn.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open connection: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to reach %s: %v\n", *server, err)
		os.Exit(1)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			fmt.Fprintf(os.Stderr, "Schema statement failed: %v\n", err)
			os.Exit(1)
		}
	}
	for _, stmt := range fixtures {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			fmt.Fprintf(os.Stderr, "Fixture statement failed: %v\n", err)
			os.Exit(1)
		}
	}

	var treatments, plans, items int
	row := db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM dbo.RestorativeTreatment),
		(SELECT COUNT(*) FROM dbo.TreatmentPlan),
		(SELECT COUNT(*) FROM dbo.TreatmentPlanItem)`)
	if err := row.Scan(&treatments, &plans, &items); err != nil {
		fmt.Fprintf(os.Stderr, "Count check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %s on %s: %d restorative treatments, %d plans, %d plan items\n",
		*database, *server, treatments, plans, items)
}
