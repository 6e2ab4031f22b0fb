package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"github.com/spf13/pflag"

	"github.com/exzackly/exzos/disk"
	"github.com/exzackly/exzos/kernel"
	clog "github.com/exzackly/exzos/log"
	"github.com/exzackly/exzos/syscalls"
)

var (
	fDisk     = pflag.StringP("disk", "d", "", "host file backing the disk; empty keeps it in memory")
	fQuantum  = pflag.IntP("quantum", "q", 6, "round robin quantum in cycles")
	fPolicy   = pflag.StringP("policy", "p", "rr", "scheduling policy: rr, fcfs or priority")
	fClock    = pflag.Duration("clock", 100*time.Millisecond, "interval between clock pulses")
	fFormat   = pflag.Bool("format", false, "format the disk at boot")
	fLogLevel = pflag.String("log-level", "info", "log level")
	fView     = pflag.Bool("view", false, "print the process table as it changes")
)

func main() {
	cpuprofile := os.Getenv("CPUPROFILE")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		fmt.Printf("pprof: profiling started\n")
	}

	pflag.Parse()

	err := boot()

	if cpuprofile != "" {
		pprof.StopCPUProfile()
		fmt.Printf("pprof: profiling finished\n")
	}

	if err != nil {
		log.Fatal(err)
	}
}

func boot() error {
	l := clog.Setup(*fLogLevel, os.Stderr)

	policy, err := kernel.ParsePolicy(*fPolicy)
	if err != nil {
		return err
	}

	cfg := kernel.DefaultConfig()
	cfg.Quantum = *fQuantum
	cfg.Policy = policy
	cfg.ClockInterval = *fClock
	cfg.Logger = l
	cfg.Console = os.Stdout

	if *fDisk != "" {
		fstore, err := disk.OpenFileStore(*fDisk, cfg.Geometry)
		if err != nil {
			return err
		}

		defer fstore.Close()

		cached, err := disk.NewCachedStore(fstore, cfg.Geometry.BlockCount())
		if err != nil {
			return err
		}

		cfg.Store = cached
	}

	k, err := kernel.NewKernel(cfg)
	if err != nil {
		return err
	}

	k.Invoker = &syscalls.Invoker{L: l.Named("syscalls")}

	if *fFormat || !k.FS().Formatted() {
		l.Info("formatting-disk", "path", *fDisk)

		if err := k.FS().Format(false); err != nil {
			return err
		}
	}

	sh := newShell(k, os.Stdout)

	if *fView {
		watchProcesses(k, sh)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return loop(ctx, k, sh, readLines(os.Stdin))
}

func readLines(f *os.File) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scan := bufio.NewScanner(f)
		for scan.Scan() {
			lines <- scan.Text()
		}
	}()

	return lines
}

// loop is the only goroutine that touches the kernel.
func loop(ctx context.Context, k *kernel.Kernel, sh *shell, lines <-chan string) error {
	ticker := time.NewTicker(k.Config().ClockInterval)
	defer ticker.Stop()

	for !sh.quit {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				sh.Type("shutdown\n")
				continue
			}

			sh.Type(line + "\n")
		case <-ticker.C:
			if err := k.Pulse(); err != nil {
				return err
			}
		}
	}

	k.Shutdown(nil)

	return nil
}

func watchProcesses(k *kernel.Kernel, sh *shell) {
	var last time.Time

	k.Events().RegisterFunc(kernel.StateChanged|kernel.ProcessExited, func() {
		if time.Since(last) < time.Second || k.Processes().Len() == 0 {
			return
		}

		last = time.Now()
		sh.ps()
	})
}
