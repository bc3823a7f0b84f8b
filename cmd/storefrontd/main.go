// Command storefrontd runs the storefront services. SERVICE selects which one
// this process hosts (ids, stock, payment, order); the default "all" mounts
// every service under its path prefix on one port, the shape the gateway
// exposes anyway.
package main

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/gateway"
	"github.com/sharedcode/storefront/ids"
	"github.com/sharedcode/storefront/kv"
	"github.com/sharedcode/storefront/order"
	"github.com/sharedcode/storefront/payment"
	"github.com/sharedcode/storefront/stock"
	"github.com/sharedcode/storefront/wal"
)

// startupLookBack is the recovery window swept at boot.
const startupLookBack = 60 * time.Minute

// Each service owns its own logical Redis DB; when one process hosts them all,
// they are separated by DB offset from REDIS_DB.
const (
	dbOffsetIDs = iota
	dbOffsetStock
	dbOffsetPayment
	dbOffsetOrder
)

func main() {
	storefront.ConfigureLogging()
	cfg, err := storefront.LoadConfig()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	router := gin.Default()
	gw := gateway.NewClient(cfg.GatewayURL)
	poster := gateway.SweepPoster{Client: gw}

	openStore := func(offset int) (kv.Store, func() error) {
		conn := kv.OpenConnection(kv.Options{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB + offset,
		})
		return kv.NewClient(conn), func() error { return kv.CloseConnection(conn) }
	}

	// One process hosting everything mints keys locally; a standalone
	// service reaches the ID service through the gateway.
	var minter wal.Minter
	if cfg.Service == "all" || cfg.Service == "ids" {
		idsDB, closeIDs := openStore(dbOffsetIDs)
		defer closeIDs()
		m := ids.NewMinter(idsDB)
		minter = m
		ids.RegisterRoutes(router.Group("/ids"), m)
	}
	if minter == nil {
		minter = ids.NewClient(cfg.GatewayURL)
	}

	var sweepers []*wal.Sweeper

	if cfg.Service == "all" || cfg.Service == "stock" {
		db, closeDB := openStore(dbOffsetStock)
		defer closeDB()
		l := wal.New(db, minter)
		sw := wal.NewSweeper(l, db, poster)
		stock.RegisterRoutes(router.Group("/stock"), stock.NewService(db, l), sw)
		sweepers = append(sweepers, sw)
	}
	if cfg.Service == "all" || cfg.Service == "payment" {
		db, closeDB := openStore(dbOffsetPayment)
		defer closeDB()
		l := wal.New(db, minter)
		sw := wal.NewSweeper(l, db, poster)
		payment.RegisterRoutes(router.Group("/payment"), payment.NewService(db, l), sw)
		sweepers = append(sweepers, sw)
	}
	if cfg.Service == "all" || cfg.Service == "order" {
		db, closeDB := openStore(dbOffsetOrder)
		defer closeDB()
		l := wal.New(db, minter)
		sw := wal.NewSweeper(l, db, poster)
		order.RegisterRoutes(router.Group("/orders"), order.NewService(db, l, gw), sw)
		sweepers = append(sweepers, sw)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return router.Run(fmt.Sprintf(":%d", cfg.Port))
	})
	g.Go(func() error {
		// Recovery at startup: roll anything half-done from a previous
		// run back before traffic relies on it.
		for _, sw := range sweepers {
			swept, err := sw.Sweep(ctx, startupLookBack)
			if err != nil {
				log.Warn("startup sweep incomplete", "swept", swept, "error", err)
				continue
			}
			if swept > 0 {
				log.Info("startup sweep finished", "swept", swept)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("service stopped", "error", err)
		os.Exit(1)
	}
}
