// Command simd runs the settlement malfunction simulation: a demo
// settlement's units wear down, break, and get repaired under a Mars-time
// pulse loop, with live telemetry over WebSocket and alerting via
// Shoutrrr.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/config"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/entity"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/feed"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/history"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/malfunction"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/notify"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/sim"
)

const settlementName = "New Plymouth"

func main() {
	cfg := config.Load()

	store, err := history.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("simd: %v", err)
	}
	defer store.Close()

	if err := notify.Migrate(store.DB()); err != nil {
		log.Fatalf("simd: %v", err)
	}

	bus := events.NewBus()
	store.AttachBus(bus)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		log.Fatalf("simd: %v", err)
	}

	dispatcher := notify.NewDispatcher(store.DB(), bus, notifyChannels(cfg), nil)
	dispatcher.Start()
	defer dispatcher.Stop()

	hub := feed.NewHub(bus)
	defer hub.Stop()

	clock := sim.NewClock()
	driver := sim.NewDriver(clock, store, cfg.TickMillisols, cfg.TickInterval, cfg.SnapshotEverySols)
	buildSettlement(driver, catalog, bus, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go driver.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newMux(cfg, driver, catalog, clock, store, hub),
	}
	go func() {
		log.Printf("simd: listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("simd: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func loadCatalog(cfg config.Config) (*malfunction.StaticCatalog, error) {
	if cfg.CatalogPath == "" {
		return malfunction.DefaultCatalog(nil), nil
	}
	log.Printf("simd: loading catalog from %s", cfg.CatalogPath)
	return malfunction.LoadCatalog(cfg.CatalogPath, nil)
}

func notifyChannels(cfg config.Config) []notify.Channel {
	var channels []notify.Channel
	for i, url := range cfg.ShoutrrrURLs {
		channels = append(channels, notify.Channel{
			Name:        "channel-" + string(rune('a'+i)),
			ShoutrrrURL: url,
			MinSeverity: events.SeverityWarning,
			Cooldown:    5 * time.Minute,
		})
	}
	return channels
}

// buildSettlement assembles the demo settlement: a habitat, a greenhouse,
// a rover, a robot, and an EVA suit, with a small crew spread across them.
func buildSettlement(driver *sim.Driver, catalog malfunction.Catalog, bus *events.Bus, clock *sim.Clock) {
	ada := entity.NewPerson("Ada Reyes", settlementName, 35)
	bo := entity.NewPerson("Bo Lindqvist", settlementName, 65)
	chen := entity.NewPerson("Chen Wu", settlementName, 50)

	habitat := entity.NewBuilding("Lander Habitat", settlementName, map[string]float64{
		entity.ResourceOxygen: 5000,
		entity.ResourceWater:  8000,
		entity.ResourceFood:   3000,
	})
	habitat.AddOccupant(ada)
	habitat.AddOccupant(bo)
	habitat.AddOccupant(chen)

	greenhouse := entity.NewBuilding("Inflatable Greenhouse", settlementName, map[string]float64{
		entity.ResourceOxygen: 800,
		entity.ResourceWater:  2000,
	})
	greenhouse.AddOccupant(chen)

	rover := entity.NewVehicle("Ranger 1", settlementName, map[string]float64{
		entity.ResourceOxygen:  300,
		entity.ResourceWater:   400,
		entity.ResourceMethane: 1200,
	})
	rover.AddOccupant(ada)

	robot := entity.NewRobot("C-3 Repairbot", settlementName)

	suit := entity.NewEVASuit("EVA Suit 01", settlementName, map[string]float64{
		entity.ResourceOxygen: 40,
		entity.ResourceWater:  4,
	})
	suit.AddOccupant(bo)

	add := func(u *entity.Unit, serviceLife, maintWork float64, scopes ...string) {
		driver.Add(&sim.Unit{
			Entity: u,
			Manager: malfunction.NewManager(u, catalog, bus, clock, malfunction.Params{
				BaseServiceLife:     serviceLife,
				MaintenanceWorkTime: maintWork,
				Scopes:              scopes,
			}),
		})
	}

	add(habitat, 2_000_000, 500, "building", "life support")
	add(greenhouse, 1_000_000, 400, "building", "life support")
	add(rover, 600_000, 300, "vehicle")
	add(robot, 400_000, 200, "robot")
	add(suit, 200_000, 100, "eva suit")
}

func newMux(cfg config.Config, driver *sim.Driver, catalog *malfunction.StaticCatalog, clock *sim.Clock, store *history.Store, hub *feed.Hub) *http.ServeMux {
	adminHash := adminPasswordHash(cfg)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("simd online"))
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"settlement": settlementName,
			"sol":        clock.MarsSol(),
			"orbit":      clock.Orbit(),
			"clients":    hub.ClientCount(),
			"units":      driver.Status(),
		})
	})

	mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		records, err := store.RecentEvents(100)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, records)
	})

	mux.HandleFunc("GET /api/parts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, catalog.PartDemand())
	})

	mux.HandleFunc("GET /ws", hub.HandleWS)

	mux.HandleFunc("POST /api/trigger", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, cfg, adminHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="simd"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req struct {
			Entity      string `json:"entity"`
			Malfunction string `json:"malfunction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		unit := driver.Unit(req.Entity)
		if unit == nil {
			http.Error(w, "unknown entity", http.StatusNotFound)
			return
		}
		tmpl, err := catalog.TemplateByName(req.Malfunction)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		inst := unit.Manager.TriggerMalfunction(tmpl, true)
		writeJSON(w, map[string]any{
			"incident": inst.IncidentID(),
			"name":     inst.Name(),
			"severity": inst.Severity(),
		})
	})

	return mux
}

// adminPasswordHash resolves the admin credential for the trigger
// endpoint. With auth enabled and no password configured, a one-off
// password is generated and logged so the endpoint is never silently open.
func adminPasswordHash(cfg config.Config) []byte {
	if !cfg.AuthEnabled {
		return nil
	}
	pass := cfg.AdminPass
	if pass == "" {
		pass = uuid.NewString()
		log.Printf("simd: ADMIN_PASS not set, generated password: %s", pass)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("simd: hash admin password: %v", err)
	}
	return hash
}

func authorized(r *http.Request, cfg config.Config, adminHash []byte) bool {
	if !cfg.AuthEnabled {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(cfg.AdminUser)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword(adminHash, []byte(pass)) == nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("simd: encode response: %v", err)
	}
}
