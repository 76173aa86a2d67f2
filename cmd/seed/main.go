package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glowbook/marketplace-booking/internal/db"
)

// Providers cluster around a single metro so radius searches return results.
const (
	cityLat = 30.2672 // Austin, TX
	cityLng = -97.7431
)

type serviceTemplate struct {
	name        string
	durationMin int
	bufferMin   int
}

var serviceCatalog = []serviceTemplate{
	{"Haircut", 30, 5},
	{"Balayage", 120, 15},
	{"Root Touch-Up", 60, 10},
	{"Blowout", 45, 5},
	{"Gel Manicure", 45, 10},
	{"Pedicure", 60, 10},
	{"Facial", 60, 15},
	{"Brow Shaping", 20, 5},
	{"Lash Extensions", 90, 15},
	{"Deep Tissue Massage", 60, 15},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedProviders(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedClients(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed clients: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d providers", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Company() + " Salon"
		// Scatter within roughly 20 km of the city center.
		lat := cityLat + gofakeit.Float64Range(-0.18, 0.18)
		lng := cityLng + gofakeit.Float64Range(-0.18, 0.18)

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, latitude, longitude, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, lat, lng)
		if err != nil {
			return err
		}

		if err := seedWorkingHours(ctx, tx, id); err != nil {
			return err
		}
		if err := seedServices(ctx, tx, id); err != nil {
			return err
		}
		if err := seedBlackouts(ctx, tx, id); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("providers seeded")
	return nil
}

func seedWorkingHours(ctx context.Context, tx pgx.Tx, providerID uuid.UUID) error {
	// Open Monday through Saturday; most shops open 9-17, some 10-19.
	openMin := 9 * 60
	closeMin := 17 * 60
	if gofakeit.Bool() {
		openMin = 10 * 60
		closeMin = 19 * 60
	}

	for weekday := 1; weekday <= 6; weekday++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO working_hours (provider_id, weekday, open_minute, close_minute)
			VALUES ($1, $2, $3, $4)
		`, providerID, weekday, openMin, closeMin)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedServices(ctx context.Context, tx pgx.Tx, providerID uuid.UUID) error {
	count := gofakeit.Number(2, 5)
	picked := catalogIndexes()
	gofakeit.ShuffleInts(picked)

	for _, idx := range picked[:count] {
		tpl := serviceCatalog[idx]
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, provider_id, name, duration_min, buffer_after_min, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, uuid.New(), providerID, tpl.name, tpl.durationMin, tpl.bufferMin)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedBlackouts(ctx context.Context, tx pgx.Tx, providerID uuid.UUID) error {
	// Roughly a third of providers get an upcoming time-off block.
	if gofakeit.Number(0, 2) != 0 {
		return nil
	}

	start := time.Now().UTC().Truncate(24 * time.Hour).
		AddDate(0, 0, gofakeit.Number(1, 14)).
		Add(time.Duration(gofakeit.Number(9, 14)) * time.Hour)
	end := start.Add(time.Duration(gofakeit.Number(2, 8)) * time.Hour)

	_, err := tx.Exec(ctx, `
		INSERT INTO blackout_periods (id, provider_id, start_time, end_time, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, uuid.New(), providerID, start, end, "time off")
	return err
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d clients", count)

	const batchSize = 250

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("clients seeded: %d/%d", end, count)
	}

	log.Println("clients seeded")
	return nil
}

func catalogIndexes() []int {
	idx := make([]int, len(serviceCatalog))
	for i := range idx {
		idx[i] = i
	}
	return idx
}
