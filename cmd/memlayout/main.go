// memlayout builds a guest memory layout the same way VM bring-up does and
// prints the resulting regions, for debugging address space configuration.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthvm/hearth/internal/cfg"
	"github.com/hearthvm/hearth/internal/vmm/guestmem"
	"github.com/hearthvm/hearth/internal/vmm/layout"
	"github.com/hearthvm/hearth/pkg/env"
	"github.com/hearthvm/hearth/pkg/logger"
)

func main() {
	memoryMB := flag.Uint64("memory", 0, "guest memory in MiB (defaults to GUEST_MEMORY_MB)")
	protected := flag.Bool("protected", false, "lay out memory for a protected VM")
	snapshotPath := flag.String("snapshot", "", "write a full memory snapshot to this path")
	flag.Parse()

	ctx := context.Background()

	config, err := cfg.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	l, err := logger.NewLogger(ctx, logger.LoggerConfig{
		ServiceName: "memlayout",
		IsDebug:     env.IsDebug(),
		InitialFields: []zap.Field{
			zap.String("run_id", uuid.NewString()),
		},
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer l.Sync()

	if *memoryMB == 0 {
		*memoryMB = config.GuestMemoryMB
	}

	protection := layout.Unprotected
	if *protected || config.ProtectedVM {
		protection = layout.Protected
	}

	ranges := layout.GuestMemoryLayout(*memoryMB<<20, protection)

	mem, err := guestmem.NewMemory(ranges)
	if err != nil {
		l.Fatal("failed to create guest memory", zap.Error(err))
	}
	defer mem.Close()

	if err := mem.SetPolicy(config.MemoryPolicy()); err != nil {
		l.Fatal("failed to apply memory policy", zap.Error(err))
	}

	for info := range mem.Regions() {
		l.Info("guest memory region",
			zap.Int("index", info.Index),
			zap.String("guest_addr", info.GuestAddr.String()),
			zap.String("size", humanize.IBytes(info.Size)),
			zap.Uint64("backing_offset", info.Offset),
			zap.Int("fd", info.Backing.Fd()),
		)
	}

	l.Info("guest memory created",
		zap.String("total", humanize.IBytes(mem.MemorySize())),
		zap.String("end_addr", mem.EndAddr().String()),
		zap.Int("regions", mem.NumRegions()),
	)

	if *snapshotPath != "" {
		f, err := os.Create(*snapshotPath)
		if err != nil {
			l.Fatal("failed to create snapshot file", zap.Error(err))
		}
		defer f.Close()

		n, err := mem.WriteSnapshot(ctx, f, nil)
		if err != nil {
			l.Fatal("failed to write snapshot", zap.Error(err))
		}

		l.Info("snapshot written",
			zap.String("path", *snapshotPath),
			zap.String("size", humanize.IBytes(uint64(n))),
		)
	}
}
