package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/placement"
	httptransport "github.com/vladislavdragonenkov/storefront/internal/transport/http"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Config описывает минимальные настройки запуска приложения.
type Config struct {
	HTTPAddr      string
	PostgresDSN   string
	KafkaBrokers  string
	KafkaTopic    string
	ConsumerGroup string
}

// DefaultConfig возвращает базовые настройки сервиса.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:      ":8080",
		KafkaTopic:    kafka.TopicOrderEvents,
		ConsumerGroup: "storefront",
	}
}

// Run собирает граф зависимостей и держит сервис до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	// События размещения попадают в outbox той же транзакцией, что и
	// заказ (репозиторий заказов делит хранилище с outbox).
	engine := placement.NewEngine(
		deps.Customers,
		deps.Products,
		deps.Orders,
		logger.WithField("layer", "placement"),
	)

	// Kafka опционален: без брокеров события остаются в outbox.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	var workerWG sync.WaitGroup
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.KafkaTopic)
		dlqPublisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
		worker := outbox.NewWorker(
			deps.Outbox,
			publisher,
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithDLQPublisher(dlqPublisher),
		)
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			worker.Run(workerCtx)
		}()

		consumer, err := initKafkaConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, kafkaProducer, logger)
		if err != nil {
			logger.WithError(err).Warn("failed to init kafka consumer")
		} else if consumer != nil {
			if err := consumer.Start(workerCtx); err != nil {
				logger.WithError(err).Warn("failed to start kafka consumer")
			} else {
				defer func() {
					if stopErr := consumer.Stop(); stopErr != nil {
						logger.WithError(stopErr).Warn("failed to stop kafka consumer")
					}
				}()
			}
		}
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(deps.Outbox, 1000, 5*time.Minute))
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", deps.Store.Ping))
	}

	orderHandler := httptransport.NewOrderHandler(engine, deps.Orders, logger.WithField("layer", "http"))
	router := httptransport.NewRouter(orderHandler, healthHandler, logger.WithField("layer", "http"))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(srv, logger)
		cancelWorker()
		workerWG.Wait()
		return ctx.Err()
	case err := <-errCh:
		cancelWorker()
		workerWG.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
