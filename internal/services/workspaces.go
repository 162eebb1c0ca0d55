package services

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	DefaultWorkspaceIdleTTL       = 24 * time.Hour
	DefaultWorkspaceSweepInterval = 10 * time.Minute
	DefaultMaxWorkspaces          = 1000
)

// Workspaces keeps one DashboardController per dashboard session. At most
// maxSessions controllers are kept; opening one more evicts the least recently
// seen session that has no upload in flight.
type Workspaces struct {
	analyzer    SummaryAnalyzer
	history     HistoryStore
	maxSessions int

	mu          sync.Mutex
	controllers map[string]*DashboardController
}

func NewWorkspaces(analyzer SummaryAnalyzer, history HistoryStore, maxSessions int) *Workspaces {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxWorkspaces
	}
	return &Workspaces{
		analyzer:    analyzer,
		history:     history,
		maxSessions: maxSessions,
		controllers: map[string]*DashboardController{},
	}
}

// Open returns the controller of the session, creating it and loading its
// initial history on first use.
func (workspaces *Workspaces) Open(ctx context.Context, sessionID string) *DashboardController {
	controller := workspaces.acquire(sessionID)
	controller.EnsureLoaded(ctx)
	return controller
}

// Attach returns the controller of the session without the initial history
// fetch. The fetch happens on the first Open, once the client comes back with
// its session.
func (workspaces *Workspaces) Attach(sessionID string) *DashboardController {
	return workspaces.acquire(sessionID)
}

func (workspaces *Workspaces) Len() int {
	workspaces.mu.Lock()
	defer workspaces.mu.Unlock()
	return len(workspaces.controllers)
}

// Drop forgets the session and its history.
func (workspaces *Workspaces) Drop(sessionID string) error {
	workspaces.mu.Lock()
	controller, ok := workspaces.controllers[sessionID]
	workspaces.mu.Unlock()

	if !ok {
		return workspaces.history.ClearRecords(sessionID)
	}
	_, err := workspaces.retire(controller, nil)
	return err
}

// Sweep drops sessions idle for longer than idleTTL and reports how many went.
func (workspaces *Workspaces) Sweep(now time.Time, idleTTL time.Duration) int {
	idle := func(controller *DashboardController) bool {
		return !controller.Uploading() && controller.idleSince(now) > idleTTL
	}

	workspaces.mu.Lock()
	expired := make([]*DashboardController, 0)
	for _, controller := range workspaces.controllers {
		if idle(controller) {
			expired = append(expired, controller)
		}
	}
	workspaces.mu.Unlock()

	dropped := 0
	for _, controller := range expired {
		retired, err := workspaces.retire(controller, func() bool { return idle(controller) })
		if err != nil {
			log.Printf("[session %s] drop idle workspace failed: %v", controller.SessionID(), err)
			continue
		}
		if retired {
			dropped++
		}
	}
	return dropped
}

func (workspaces *Workspaces) Start(ctx context.Context, interval time.Duration, idleTTL time.Duration) {
	if interval <= 0 {
		interval = DefaultWorkspaceSweepInterval
	}
	if idleTTL <= 0 {
		idleTTL = DefaultWorkspaceIdleTTL
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if dropped := workspaces.Sweep(now, idleTTL); dropped > 0 {
					log.Printf("dropped %d idle dashboard sessions, %d left", dropped, workspaces.Len())
				}
			}
		}
	}()
}

func (workspaces *Workspaces) acquire(sessionID string) *DashboardController {
	var evicted *DashboardController

	workspaces.mu.Lock()
	controller, ok := workspaces.controllers[sessionID]
	if !ok {
		if len(workspaces.controllers) >= workspaces.maxSessions {
			evicted = workspaces.leastRecentlySeenLocked()
			if evicted != nil {
				delete(workspaces.controllers, evicted.SessionID())
			}
		}
		controller = NewDashboardController(sessionID, workspaces.analyzer, workspaces.history)
		workspaces.controllers[sessionID] = controller
	}
	workspaces.mu.Unlock()
	controller.touch()

	if evicted != nil {
		if _, err := workspaces.retire(evicted, nil); err != nil {
			log.Printf("[session %s] evict workspace failed: %v", evicted.SessionID(), err)
		}
	}
	return controller
}

func (workspaces *Workspaces) leastRecentlySeenLocked() *DashboardController {
	var oldest *DashboardController
	for _, controller := range workspaces.controllers {
		if controller.Uploading() {
			continue
		}
		if oldest == nil || controller.lastSeen.Load() < oldest.lastSeen.Load() {
			oldest = controller
		}
	}
	return oldest
}

// retire removes the controller and clears its history while holding the
// controller's operations lock, so no upload or fetch can write to the session
// afterwards. stillIdle, when set, is re-checked under that lock and a false
// answer keeps the session.
func (workspaces *Workspaces) retire(controller *DashboardController, stillIdle func() bool) (bool, error) {
	controller.operations.Lock()
	defer controller.operations.Unlock()

	if controller.retired {
		return false, nil
	}
	if stillIdle != nil && !stillIdle() {
		return false, nil
	}
	controller.retired = true

	workspaces.mu.Lock()
	if workspaces.controllers[controller.sessionID] == controller {
		delete(workspaces.controllers, controller.sessionID)
	}
	workspaces.mu.Unlock()

	return true, workspaces.history.ClearRecords(controller.sessionID)
}
