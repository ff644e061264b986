package main

import (
	"log"
	"os"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := logging.InitDefaultLogger("voxeld"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	if err := newApp().Run(os.Args); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "voxeld",
		Usage: "headless движок воксельного мира: генерация, подгрузка и меши чанков",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "путь к YAML конфигурации движка",
				EnvVars: []string{"VOXEL_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "world",
				Aliases: []string{"w"},
				Usage:   "путь к описанию мира (перекрывает world.path)",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "зерно шума (перекрывает world.seed)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "уровень логирования: trace, debug, info, warn, error",
			},
		},
		Before: func(c *cli.Context) error {
			level := logging.ParseLevel(c.String("log-level"))
			logging.GetLoggerManager().SetAllLevels(level, level)
			logging.Default().SetLevels(level, level)
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			exportCommand(),
		},
	}
}
