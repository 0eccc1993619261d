package services

import (
	"math/rand"
	"sync"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
)

// TopicManager draws topics at random without replacement. When the pool
// is exhausted it is refilled from the original set and reshuffled, so
// long request runs cycle through all topics before repeating any.
//
// A manager belongs to a single request but its draws can happen from
// concurrent goroutines, so the pool is mutex-guarded.
type TopicManager struct {
	mu        sync.Mutex
	log       *logger.Logger
	original  []string
	available []string
}

func NewTopicManager(log *logger.Logger, topics []string) (*TopicManager, error) {
	if len(topics) == 0 {
		return nil, ValidationError("topic list must not be empty")
	}
	m := &TopicManager{
		log:      log.With("component", "TopicManager"),
		original: append([]string(nil), topics...),
	}
	m.refill()
	return m, nil
}

func (m *TopicManager) refill() {
	m.available = append([]string(nil), m.original...)
	rand.Shuffle(len(m.available), func(i, j int) {
		m.available[i], m.available[j] = m.available[j], m.available[i]
	})
}

// NextTopic returns one topic, resetting the pool first when it is empty.
func (m *TopicManager) NextTopic() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.available) == 0 {
		m.refill()
		m.log.Info("Reset topic pool", "topics", len(m.available))
	}
	idx := rand.Intn(len(m.available))
	topic := m.available[idx]
	m.available = append(m.available[:idx], m.available[idx+1:]...)
	return topic
}

// PositioningTopicManager spreads draws fairly across course modules:
// every module with topics is drawn from once before any module is
// revisited, independent of how many topics each module holds. Within a
// module, drawing delegates to that module's TopicManager.
type PositioningTopicManager struct {
	mu               sync.Mutex
	log              *logger.Logger
	moduleManagers   map[string]*TopicManager
	availableModules []string
}

func NewPositioningTopicManager(log *logger.Logger, modulesTopics map[string][]string) (*PositioningTopicManager, error) {
	m := &PositioningTopicManager{
		log:            log.With("component", "PositioningTopicManager"),
		moduleManagers: make(map[string]*TopicManager, len(modulesTopics)),
	}
	for moduleName, topics := range modulesTopics {
		if len(topics) == 0 {
			continue
		}
		tm, err := NewTopicManager(log, topics)
		if err != nil {
			return nil, err
		}
		m.moduleManagers[moduleName] = tm
	}
	if len(m.moduleManagers) == 0 {
		return nil, ValidationError("no modules with topics available")
	}
	m.resetModules()
	return m, nil
}

func (m *PositioningTopicManager) resetModules() {
	m.availableModules = m.availableModules[:0]
	for name := range m.moduleManagers {
		m.availableModules = append(m.availableModules, name)
	}
	rand.Shuffle(len(m.availableModules), func(i, j int) {
		m.availableModules[i], m.availableModules[j] = m.availableModules[j], m.availableModules[i]
	})
}

// NextTopic selects an unused module for the current rotation cycle, then
// delegates to that module's topic pool.
func (m *PositioningTopicManager) NextTopic() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.availableModules) == 0 {
		m.resetModules()
		m.log.Info("Reset module pool", "modules", len(m.availableModules))
	}
	idx := rand.Intn(len(m.availableModules))
	moduleName := m.availableModules[idx]
	m.availableModules = append(m.availableModules[:idx], m.availableModules[idx+1:]...)

	topic := m.moduleManagers[moduleName].NextTopic()
	m.log.Debug("Selected topic", "module", moduleName, "topic", topic)
	return topic
}

// topicSource abstracts the two manager variants for the planner.
type topicSource interface {
	NextTopic() string
}
