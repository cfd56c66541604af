package analytics

import (
	"PURLS-Backend/internal/config"
	"PURLS-Backend/internal/domain"
	"PURLS-Backend/internal/repository"
	"PURLS-Backend/pkg/useragent"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotStarted     = errors.New("processor not started")
	ErrAlreadyStarted = errors.New("processor already started")
	ErrQueueFull      = errors.New("analytics queue is full")
	ErrShutdown       = errors.New("shutdown timeout reached")
)

// ClickData represents analytics data to be processed
type ClickData struct {
	LinkID    int64
	ShortCode string
	IPAddress *string
	UserAgent *string
	Referer   *string
	ClickedAt time.Time
}

// ClickRecorder сохраняет детальные записи о кликах
type ClickRecorder interface {
	RecordClick(ctx context.Context, click *domain.Click) error
}

// DeviceClassifier определяет тип устройства по User-Agent
type DeviceClassifier interface {
	Parse(userAgent string) *useragent.DeviceInfo
}

// ProcessorConfig holds configuration for the analytics processor
type ProcessorConfig struct {
	WorkerCount     int           // Number of worker goroutines
	BufferSize      int           // Size of the job queue buffer
	RetryAttempts   int           // Number of attempts per click
	RetryDelay      time.Duration // Base delay between retries, doubled each attempt
	ShutdownTimeout time.Duration // Time to wait for the queue to drain
	AttemptTimeout  time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:     3,
		BufferSize:      1000,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		ShutdownTimeout: 30 * time.Second,
		AttemptTimeout:  10 * time.Second,
	}
}

// ConfigFrom builds processor configuration from the application config.
func ConfigFrom(cfg *config.Analytics) ProcessorConfig {
	pc := DefaultConfig()
	pc.WorkerCount = cfg.WorkerCount
	pc.BufferSize = cfg.BufferSize
	pc.RetryAttempts = cfg.RetryAttempts
	pc.RetryDelay = cfg.RetryDelay
	pc.ShutdownTimeout = cfg.ShutdownTimeout
	if pc.RetryAttempts < 1 {
		pc.RetryAttempts = 1
	}
	return pc
}

// Stats снимок состояния процессора
type Stats struct {
	Started       bool  `json:"started"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	WorkerCount   int   `json:"worker_count"`
	RetryAttempts int   `json:"retry_attempts"`
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
	Dropped       int64 `json:"dropped"`
}

// Processor handles asynchronous click-detail recording
type Processor struct {
	config     ProcessorConfig
	storage    ClickRecorder
	classifier DeviceClassifier
	log        *zap.Logger
	jobQueue   chan *ClickData
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopped    bool
	mu         sync.RWMutex

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewProcessor creates a new analytics processor
func NewProcessor(storage ClickRecorder, classifier DeviceClassifier, log *zap.Logger, config ProcessorConfig) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		config:     config,
		storage:    storage,
		classifier: classifier,
		log:        log,
		jobQueue:   make(chan *ClickData, config.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing analytics data
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return ErrAlreadyStarted
	}

	p.log.Info("starting analytics processor",
		zap.Int("workers", p.config.WorkerCount),
		zap.Int("buffer_size", p.config.BufferSize),
		zap.Int("retry_attempts", p.config.RetryAttempts),
	)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits for workers to drain it.
// Workers still busy after ShutdownTimeout are cancelled.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.log.Info("stopping analytics processor", zap.Int("pending", len(p.jobQueue)))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info("analytics processor stopped gracefully")
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.cancel()
		<-done
		p.log.Warn("analytics processor shutdown timeout reached")
		return ErrShutdown
	}
}

// SubmitClick enqueues a click without blocking. A full queue drops the click.
func (p *Processor) SubmitClick(clickData *ClickData) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return ErrNotStarted
	}

	select {
	case p.jobQueue <- clickData:
		p.log.Debug("click data submitted for processing", zap.String("short_code", clickData.ShortCode))
		return nil
	default:
		p.dropped.Add(1)
		p.log.Error("analytics queue is full, dropping click data",
			zap.String("short_code", clickData.ShortCode),
			zap.Int("queue_size", len(p.jobQueue)),
		)
		return ErrQueueFull
	}
}

func (p *Processor) worker(workerID int) {
	defer p.wg.Done()

	log := p.log.With(zap.Int("worker_id", workerID))
	log.Debug("analytics worker started")

	for clickData := range p.jobQueue {
		if p.ctx.Err() != nil {
			continue
		}
		p.processClickWithRetry(log, clickData)
	}

	log.Debug("analytics worker stopped")
}

func (p *Processor) processClickWithRetry(log *zap.Logger, clickData *ClickData) {
	click := p.buildClick(clickData)

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= p.config.RetryAttempts; attempt++ {
		attempts = attempt
		ctx, cancel := context.WithTimeout(p.ctx, p.config.AttemptTimeout)
		err := p.storage.RecordClick(ctx, click)
		cancel()

		if err == nil {
			p.processed.Add(1)
			if attempt > 1 {
				log.Info("click processing succeeded after retry",
					zap.String("short_code", clickData.ShortCode),
					zap.Int("attempt", attempt),
				)
			}
			return
		}

		lastErr = err
		if errors.Is(err, repository.ErrLinkNotFound) {
			// Ссылки нет, повтор не поможет
			break
		}
		log.Warn("click processing failed",
			zap.String("short_code", clickData.ShortCode),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.config.RetryAttempts),
			zap.Error(err),
		)

		if attempt == p.config.RetryAttempts {
			break
		}

		// Exponential backoff
		delay := p.config.RetryDelay * time.Duration(1<<(attempt-1))
		select {
		case <-time.After(delay):
		case <-p.ctx.Done():
			p.failed.Add(1)
			log.Info("worker shutdown during retry delay", zap.String("short_code", clickData.ShortCode))
			return
		}
	}

	p.failed.Add(1)
	log.Error("click processing failed",
		zap.String("short_code", clickData.ShortCode),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
}

// buildClick классифицирует User-Agent и собирает запись клика
func (p *Processor) buildClick(clickData *ClickData) *domain.Click {
	deviceType := domain.DeviceUnknown
	click := &domain.Click{
		LinkID:    clickData.LinkID,
		IPAddress: clickData.IPAddress,
		UserAgent: clickData.UserAgent,
		Referer:   clickData.Referer,
		ClickedAt: clickData.ClickedAt,
	}

	if clickData.UserAgent != nil && p.classifier != nil {
		info := p.classifier.Parse(*clickData.UserAgent)
		deviceType = info.DeviceType
		click.Browser = &info.Browser
		click.OS = &info.OS
	}
	click.DeviceType = &deviceType
	click.Truncate()

	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now().UTC()
	}
	return click
}

// GetStats returns processor statistics
func (p *Processor) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Stats{
		Started:       p.started,
		QueueLength:   len(p.jobQueue),
		QueueCapacity: cap(p.jobQueue),
		WorkerCount:   p.config.WorkerCount,
		RetryAttempts: p.config.RetryAttempts,
		Processed:     p.processed.Load(),
		Failed:        p.failed.Load(),
		Dropped:       p.dropped.Load(),
	}
}
