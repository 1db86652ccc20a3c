package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"watchsync/config"
	syncsvc "watchsync/services/sync"
)

// Service runs the recurring sync tasks defined in the settings file.
type Service struct {
	configManager *config.Manager
	syncService   *syncsvc.Service

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Per-task in-flight guard, in-memory only.
	taskRunning map[string]bool
	taskMu      sync.RWMutex
}

// NewService creates a scheduler over the configured task list.
func NewService(configManager *config.Manager, syncService *syncsvc.Service) *Service {
	return &Service{
		configManager: configManager,
		syncService:   syncService,
		taskRunning:   make(map[string]bool),
	}
}

// Start begins the background check loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop()

	log.Println("[scheduler] started")
	return nil
}

// Stop cancels the loop and waits for in-flight tasks, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped (timeout waiting for tasks)")
	}

	s.running = false
	return nil
}

func (s *Service) loop() {
	defer s.wg.Done()

	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] failed to load settings: %v", err)
		return
	}

	checkInterval := time.Duration(settings.Scheduler.CheckIntervalSeconds) * time.Second
	if checkInterval < time.Second {
		checkInterval = time.Minute
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	s.checkAndRunTasks()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRunTasks()
		}
	}
}

func (s *Service) checkAndRunTasks() {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] failed to load settings: %v", err)
		return
	}

	for _, task := range settings.Scheduler.Tasks {
		if !task.Enabled {
			continue
		}
		if s.shouldRun(task) {
			s.wg.Add(1)
			go func(t config.ScheduledTask) {
				defer s.wg.Done()
				s.executeTask(t)
			}(task)
		}
	}
}

func (s *Service) shouldRun(task config.ScheduledTask) bool {
	s.taskMu.RLock()
	running := s.taskRunning[task.ID]
	s.taskMu.RUnlock()
	if running {
		return false
	}

	if task.LastRunAt == nil {
		return true
	}
	return time.Since(*task.LastRunAt) >= task.Frequency.Interval()
}

func (s *Service) executeTask(task config.ScheduledTask) {
	s.taskMu.Lock()
	s.taskRunning[task.ID] = true
	s.taskMu.Unlock()

	defer func() {
		s.taskMu.Lock()
		delete(s.taskRunning, task.ID)
		s.taskMu.Unlock()
	}()

	log.Printf("[scheduler] executing task %s (%s)", task.Name, task.Type)

	var itemsAdded int
	var err error

	switch task.Type {
	case config.TaskTypeWatchlistSync:
		var stats syncsvc.Stats
		stats, err = s.syncService.Run()
		itemsAdded = len(stats.Added)
	case config.TaskTypeStatusRefresh:
		itemsAdded, err = s.syncService.RefreshStatuses()
	default:
		log.Printf("[scheduler] unknown task type: %s", task.Type)
		return
	}

	// Incomplete settings are expected on a fresh install; skip quietly
	// instead of flagging the task red.
	if errors.Is(err, syncsvc.ErrSettingsIncomplete) {
		log.Printf("[scheduler] task %s skipped: settings incomplete", task.ID)
		return
	}
	if errors.Is(err, syncsvc.ErrSyncRunning) {
		log.Printf("[scheduler] task %s skipped: sync already running", task.ID)
		return
	}

	s.updateTaskStatus(task.ID, err, itemsAdded)
}

func (s *Service) updateTaskStatus(taskID string, err error, itemsAdded int) {
	settings, loadErr := s.configManager.Load()
	if loadErr != nil {
		log.Printf("[scheduler] failed to load settings to update task status: %v", loadErr)
		return
	}

	now := time.Now().UTC()
	for i := range settings.Scheduler.Tasks {
		if settings.Scheduler.Tasks[i].ID != taskID {
			continue
		}
		settings.Scheduler.Tasks[i].LastRunAt = &now
		settings.Scheduler.Tasks[i].ItemsAdded = itemsAdded
		if err != nil {
			settings.Scheduler.Tasks[i].LastStatus = config.TaskStatusError
			settings.Scheduler.Tasks[i].LastError = err.Error()
			log.Printf("[scheduler] task %s failed: %v", taskID, err)
		} else {
			settings.Scheduler.Tasks[i].LastStatus = config.TaskStatusSuccess
			settings.Scheduler.Tasks[i].LastError = ""
			log.Printf("[scheduler] task %s completed, %d item(s) changed", taskID, itemsAdded)
		}
		break
	}

	if saveErr := s.configManager.Save(settings); saveErr != nil {
		log.Printf("[scheduler] failed to save task status: %v", saveErr)
	}
}

// RunTaskNow triggers immediate execution of a task by id.
func (s *Service) RunTaskNow(taskID string) error {
	settings, err := s.configManager.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	for _, task := range settings.Scheduler.Tasks {
		if task.ID != taskID {
			continue
		}

		s.taskMu.RLock()
		running := s.taskRunning[taskID]
		s.taskMu.RUnlock()
		if running {
			return errors.New("task is already running")
		}

		s.wg.Add(1)
		go func(t config.ScheduledTask) {
			defer s.wg.Done()
			s.executeTask(t)
		}(task)
		return nil
	}

	return errors.New("task not found")
}

// TaskStatus returns the configured tasks; tasks currently in flight are
// reported as running.
func (s *Service) TaskStatus() []config.ScheduledTask {
	settings, err := s.configManager.Load()
	if err != nil {
		return nil
	}

	s.taskMu.RLock()
	defer s.taskMu.RUnlock()

	tasks := make([]config.ScheduledTask, len(settings.Scheduler.Tasks))
	for i, task := range settings.Scheduler.Tasks {
		tasks[i] = task
		if s.taskRunning[task.ID] {
			tasks[i].LastStatus = config.TaskStatusRunning
		}
	}
	return tasks
}
