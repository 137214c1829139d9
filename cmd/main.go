package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"knnvote/internal/config"
	"knnvote/internal/dataset"
	"knnvote/internal/knn"
	"knnvote/internal/server"
	"knnvote/pkg/logger"
)

const (
	defaultTrainFile = "bank-train.csv"
	defaultTestFile  = "bank-test.csv"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		train      = flag.String("train", "", "training source: file path or s3://bucket/key, or a table name with -db (default "+defaultTrainFile+" or loader.table)")
		test       = flag.String("test", "", "labeled test source, same forms as -train (default "+defaultTestFile+" or loader.test_table)")
		dbPath     = flag.String("db", "", "SQLite database; -train and -test name tables in it")
		mode       = flag.String("mode", "bench", "bench or serve")
	)
	flag.Parse()

	if err := run(*configPath, *train, *test, *dbPath, *mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, train, test, dbPath, mode string) error {
	conf, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(conf.Log.Level, conf.ResolvePath(conf.Log.File)); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, closeLoader, err := newLoader(conf, dbPath)
	if err != nil {
		return err
	}
	defer closeLoader()

	order, err := knn.ParseOrder(conf.Order)
	if err != nil {
		return err
	}
	trainSource, testSource := sources(conf, train, test, dbPath)
	clf, err := knn.NewFromLoader(ctx, loader, trainSource, conf.K,
		knn.WithWorkers(conf.Workers),
		knn.WithOrder(order),
		knn.WithExcludeLastAttribute(conf.ExcludeLastAttribute),
	)
	if err != nil {
		return err
	}
	defer clf.Close()

	switch mode {
	case "serve":
		return server.New(clf, conf).Serve(ctx)
	case "bench":
		return bench(ctx, clf, loader, testSource)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.FromFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.NewConfig(wd)
}

// newLoader picks the SQL loader when a database is given and the delimited
// text loader otherwise.
func newLoader(conf *config.Config, dbPath string) (dataset.Loader, func(), error) {
	if dbPath != "" {
		db, err := dataset.OpenSQLite(conf.ResolvePath(dbPath))
		if err != nil {
			return nil, nil, err
		}
		loader := &dataset.SQLLoader{
			DB:            db,
			Table:         conf.Loader.Table,
			LabelColumn:   conf.Loader.LabelColumn,
			PositiveLabel: conf.Loader.PositiveLabel,
		}
		return loader, func() { db.Close() }, nil
	}

	store, err := dataset.NewObjectStore(conf.ObjectStore)
	if err != nil {
		return nil, nil, err
	}
	loader := dataset.NewDelimitedLoader(&dataset.Opener{ObjectStore: store})
	loader.Separator = conf.Loader.Separator
	loader.SkipHeader = conf.Loader.SkipHeader
	loader.PositiveLabel = conf.Loader.PositiveLabel
	return loader, func() {}, nil
}

// sources fills in unset -train and -test values. With a database they
// default to the configured tables, otherwise to the bank files next to
// the config.
func sources(conf *config.Config, train, test, dbPath string) (string, string) {
	if dbPath != "" {
		if train == "" {
			train = conf.Loader.Table
		}
		if test == "" {
			test = conf.Loader.TestTable
		}
		return train, test
	}
	if train == "" {
		train = defaultTrainFile
	}
	if test == "" {
		test = defaultTestFile
	}
	return conf.ResolvePath(train), conf.ResolvePath(test)
}

func bench(ctx context.Context, clf *knn.Classifier, loader dataset.Loader, source string) error {
	features, labels, err := loader.Load(ctx, source)
	if err != nil {
		return err
	}
	rows, err := dataset.Join(features, labels)
	if err != nil {
		return err
	}

	for _, strategy := range []knn.Strategy{knn.Serial, knn.Parallel} {
		start := time.Now()
		accuracy, err := clf.Evaluate(ctx, rows, strategy)
		if err != nil {
			return err
		}
		logger.Info("evaluation finished",
			"strategy", strategy,
			"accuracy_percent", accuracy*100,
			"elapsed", time.Since(start),
			"rows", len(rows),
			"workers", clf.Workers(),
		)
	}
	return nil
}
