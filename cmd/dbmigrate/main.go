package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"tg-exchange/internal/config"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/service"
	"tg-exchange/internal/storage"
)

// audit tables, in creation order
var tables = []interface{}{&models.EnforcementRecord{}, &models.PendingMessage{}}

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.BindFlags(fs)
	action := fs.String("action", "migrate", "Action to perform (migrate, reset, status, user, due)")
	userID := fs.Int64("user", 0, "user id for the user action")
	groupID := fs.Int64("group", 0, "limit the user action to one group")
	_ = fs.Parse(os.Args[1:])

	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.SetOutput(logger.GetRotatingLogWriter(cfg, "dbmigrate"))

	if !cfg.Database.Enabled {
		log.Fatalf("Database is not enabled in configuration")
	}

	if err := storage.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := storage.GetDB()
	if db == nil {
		log.Fatalf("Failed to get database connection")
	}

	switch *action {
	case "migrate":
		audit, pending := service.InitRepositories()
		if audit == nil || pending == nil {
			log.Fatalf("Migration failed: no database connection")
		}
		log.Println("Migration completed successfully")
	case "reset":
		if err := resetDatabase(db); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Database reset completed successfully")
	case "status":
		checkStatus(db)
	case "user":
		if *userID == 0 {
			log.Fatalf("--user is required")
		}
		if err := showUser(storage.NewEnforcementRepository(db), *userID, *groupID); err != nil {
			log.Fatalf("Query failed: %v", err)
		}
	case "due":
		if err := showDue(storage.NewPendingMsgRepository(db)); err != nil {
			log.Fatalf("Query failed: %v", err)
		}
	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

// resetDatabase drops tables and recreates them
func resetDatabase(db *gorm.DB) error {
	fmt.Println("Resetting database...")

	fmt.Print("WARNING: This will delete all data! Are you sure? (y/N): ")
	var confirmation string
	fmt.Scanln(&confirmation)

	if confirmation != "y" && confirmation != "Y" {
		return fmt.Errorf("operation cancelled by user")
	}

	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(tables[i]); err != nil {
			return fmt.Errorf("failed to drop %T table: %w", tables[i], err)
		}
	}
	return db.AutoMigrate(tables...)
}

// checkStatus checks the database status
func checkStatus(db *gorm.DB) {
	fmt.Println("Checking database status...")

	for _, t := range tables {
		if !db.Migrator().HasTable(t) {
			fmt.Printf("❌ %T table does not exist\n", t)
			continue
		}
		var count int64
		db.Model(t).Count(&count)
		fmt.Printf("✅ %T table exists\n   - Contains %d records\n", t, count)
	}
}

// showUser prints the actions still in force against a user
func showUser(repo *storage.EnforcementRepository, uid, gid int64) error {
	records, err := repo.ActiveByUser(uid, gid)
	if err != nil {
		return err
	}
	fmt.Printf("User %d has %d active records\n", uid, len(records))
	for _, r := range records {
		fmt.Printf("   - group %d: %s (%s) at %s\n", r.GroupID, r.Action, r.Rule, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// showDue prints the reports that should already have been deleted
func showDue(repo *storage.PendingMsgRepository) error {
	msgs, err := repo.GetDueMsgs(time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("%d messages are due for deletion\n", len(msgs))
	for _, m := range msgs {
		fmt.Printf("   - chat %d message %d (%s) since %s\n", m.ChatID, m.MessageID, m.Purpose, m.DeleteAt.Format(time.RFC3339))
	}
	return nil
}
