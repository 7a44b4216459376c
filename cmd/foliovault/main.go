package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dcervantes/foliovault/internal/agreements"
	"github.com/dcervantes/foliovault/internal/blobstore"
	"github.com/dcervantes/foliovault/internal/config"
	"github.com/dcervantes/foliovault/internal/database"
	"github.com/dcervantes/foliovault/internal/repository"
)

var composeFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "foliovault: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foliovault",
		Short: "FolioVault operations CLI",
		Long: `Bootstraps and operates a FolioVault deployment: creates the documents and
agreements schema, prepares the MinIO bucket, seeds demo agreements for the
dashboard, and drives the docker compose stack (Postgres, MinIO, Redis).`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file for stack commands")
	cmd.AddCommand(
		newInitDBCmd(),
		newBucketCmd(),
		newSeedCmd(),
		newStackCmd(),
		newRunCmd(),
	)
	return cmd
}

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the documents and agreements tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			fmt.Println("schema ready")
			return nil
		},
	}
}

func newBucketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bucket",
		Short: "Ensure the payload bucket exists in MinIO",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			blobs, err := blobstore.NewMinio(cfg)
			if err != nil {
				return err
			}
			if err := blobs.EnsureBucket(ctx); err != nil {
				return err
			}
			fmt.Printf("bucket %s ready at %s\n", cfg.Bucket, cfg.S3Endpoint)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo agreements so the dashboard has data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			mgr := agreements.NewManager(repository.NewAgreementRepository(pool), cfg.WindowDays)

			now := time.Now()
			days := func(d int) *time.Time {
				t := now.AddDate(0, 0, d)
				return &t
			}
			demo := []agreements.CreateCommand{
				{UnidadReceptora: "Facultad de Derecho", Nombre: "Convenio marco de practicas", FechaInicio: days(-200), FechaFin: days(365)},
				{UnidadReceptora: "Hospital General", Nombre: "Convenio de servicio social", FechaInicio: days(-100), FechaFin: days(20)},
				{UnidadReceptora: "Despacho Torres y Asociados", Nombre: "Convenio de colaboracion", FechaInicio: days(-400), FechaFin: days(-30)},
				{UnidadReceptora: "Instituto de Idiomas", Nombre: "Convenio en captura", FechaInicio: days(-5)},
			}
			for _, c := range demo {
				a, err := mgr.Create(ctx, c, now)
				if errors.Is(err, agreements.ErrDuplicateUnit) {
					fmt.Printf("skip %s: already registered\n", c.UnidadReceptora)
					continue
				}
				if err != nil {
					return err
				}
				fmt.Printf("created %s %s (%s)\n", a.Folio(), a.UnidadReceptora, a.Estatus)
			}
			return nil
		},
	}
}

func newStackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage the docker compose stack (Postgres, MinIO, Redis)",
	}

	up := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start services in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := append([]string{"compose", "-f", composeFile, "up", "-d"}, args...)
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}

	var removeVolumes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Stop the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"compose", "-f", composeFile, "down"}
			if removeVolumes {
				composeArgs = append(composeArgs, "-v")
			}
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
	down.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Remove stack volumes")

	var follow bool
	logs := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Tail service logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"compose", "-f", composeFile, "logs"}
			if follow {
				composeArgs = append(composeArgs, "-f")
			}
			composeArgs = append(composeArgs, args...)
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
	logs.Flags().BoolVarP(&follow, "follow", "f", false, "Stream logs continuously")

	cmd.AddCommand(up, down, logs)
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a FolioVault binary directly",
	}
	for _, svc := range []struct{ name, path string }{
		{"server", "./cmd/server"},
		{"worker", "./cmd/worker"},
	} {
		svc := svc
		cmd.AddCommand(&cobra.Command{
			Use:   svc.name,
			Short: fmt.Sprintf("go run %s", svc.path),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCommand(cmd.Context(), "go", append([]string{"run", svc.path}, args...)...)
			},
		})
	}
	return cmd
}

// openPool loads config, connects, and makes sure the schema exists. Callers
// own closing the pool.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return cfg, pool, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
