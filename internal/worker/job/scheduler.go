package job

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// JobFunc 定义作业执行函数
type JobFunc func(ctx context.Context) error

// Scheduler 作业调度器
type Scheduler struct {
	jobs    map[string]*ScheduledJob
	running bool
	mu      sync.Mutex
	logger  *zap.Logger
	clock   clockwork.Clock

	isFatal func(error) bool
	onFatal func(job string, err error)
}

// ScheduledJob 表示一个调度的作业，周期作业在上一次执行结束后再等待 interval
type ScheduledJob struct {
	name     string
	interval time.Duration
	fn       JobFunc
	done     sync.WaitGroup
	cancel   context.CancelFunc
	once     bool
	runs     int
}

type Option func(*Scheduler)

// WithClock 替换时钟，测试中使用 fake clock
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithFatalHandler isFatal 命中时停止该作业并回调 onFatal
func WithFatalHandler(isFatal func(error) bool, onFatal func(job string, err error)) Option {
	return func(s *Scheduler) {
		s.isFatal = isFatal
		s.onFatal = onFatal
	}
}

// NewScheduler 创建调度器
func NewScheduler(logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:   make(map[string]*ScheduledJob),
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterJob 注册作业
func (s *Scheduler) RegisterJob(name string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = &ScheduledJob{
		name:     name,
		interval: interval,
		fn:       fn,
		once:     false,
	}

	s.logger.Info("Registered job", zap.String("job", name), zap.Duration("interval", interval))
}

// RegisterOnceJob 注册只运行一次的作业
func (s *Scheduler) RegisterOnceJob(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = &ScheduledJob{
		name: name,
		fn:   fn,
		once: true,
	}

	s.logger.Info("Registered once job", zap.String("job", name))
}

// Start 启动调度器
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true

	for _, job := range s.jobs {
		j := job
		jobCtx, cancel := context.WithCancel(ctx)
		j.cancel = cancel
		j.done.Add(1)

		go func() {
			defer j.done.Done()
			defer cancel()
			if j.once {
				s.runOnceJob(jobCtx, j)
			} else {
				s.runJob(jobCtx, j)
			}
		}()
	}
}

// Stop 取消所有作业并等待当前执行结束，ctx 到期后不再等待
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false

	for _, job := range s.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	s.mu.Unlock()

	s.logger.Warn("Stopping scheduler...")

	waitCh := make(chan struct{})
	go func() {
		for _, job := range s.jobs {
			job.done.Wait()
		}
		close(waitCh)
	}()

	select {
	case <-waitCh:
		s.logger.Info("All jobs stopped successfully")
	case <-ctx.Done():
		s.logger.Warn("Context deadline exceeded while waiting for jobs to stop")
	}
}

// runOnceJob 运行单次任务
func (s *Scheduler) runOnceJob(ctx context.Context, job *ScheduledJob) {
	s.logger.Info("Running one-time job", zap.String("job", job.name))
	if err := s.executeJob(ctx, job); err != nil && s.fatal(err) {
		s.reportFatal(job, err)
	}
}

// runJob 循环执行，两次执行之间休眠 interval
func (s *Scheduler) runJob(ctx context.Context, job *ScheduledJob) {
	s.logger.Info("Running job", zap.String("job", job.name), zap.Duration("interval", job.interval))

	for {
		if err := s.executeJob(ctx, job); err != nil && s.fatal(err) {
			s.reportFatal(job, err)
			return
		}

		select {
		case <-s.clock.After(job.interval):
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping job", zap.String("job", job.name))
			return
		}
	}
}

// executeJob 执行作业，panic 转成错误
func (s *Scheduler) executeJob(ctx context.Context, job *ScheduledJob) (err error) {
	s.logger.Debug("Starting job execution", zap.String("job", job.name))
	startTime := s.clock.Now()
	job.runs++

	var pc panics.Catcher
	pc.Try(func() { err = job.fn(ctx) })
	if rec := pc.Recovered(); rec != nil {
		err = rec.AsError()
	}

	if err != nil {
		s.logger.Error("Job execution failed",
			zap.String("job", job.name),
			zap.Int("run", job.runs),
			zap.Error(err),
			zap.Duration("duration", s.clock.Since(startTime)))
	} else {
		s.logger.Debug("Job execution completed",
			zap.String("job", job.name),
			zap.Int("run", job.runs),
			zap.Duration("duration", s.clock.Since(startTime)))
	}
	return err
}

func (s *Scheduler) fatal(err error) bool {
	return s.isFatal != nil && s.isFatal(err)
}

func (s *Scheduler) reportFatal(job *ScheduledJob, err error) {
	s.logger.Error("Job stopped on fatal error", zap.String("job", job.name), zap.Error(err))
	if s.onFatal != nil {
		s.onFatal(job.name, err)
	}
}
