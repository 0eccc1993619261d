package services

import (
	"context"
	"strings"
	"sync"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/platform/openai"
	"github.com/courseloop/courseloop-backend/internal/platform/pinecone"
)

// AgentCache hands out retrieval agents keyed by course filter, building
// and memoizing them lazily. It replaces what used to be ambient global
// state so the dependency is explicit and fakeable in tests.
type AgentCache interface {
	Get(ctx context.Context, courseFilter string) (RetrievalAgent, error)
	Clear(courseFilter string)
	ClearAll()
}

type agentCache struct {
	mu     sync.Mutex
	log    *logger.Logger
	ai     openai.Client
	vec    pinecone.VectorStore
	topK   int
	agents map[string]RetrievalAgent
}

func NewAgentCache(log *logger.Logger, ai openai.Client, vec pinecone.VectorStore, topK int) AgentCache {
	return &agentCache{
		log:    log.With("service", "AgentCache"),
		ai:     ai,
		vec:    vec,
		topK:   topK,
		agents: make(map[string]RetrievalAgent),
	}
}

func agentKey(courseFilter string) string {
	key := strings.TrimSpace(courseFilter)
	if key == "" {
		return "all"
	}
	return key
}

func (c *agentCache) Get(ctx context.Context, courseFilter string) (RetrievalAgent, error) {
	key := agentKey(courseFilter)

	c.mu.Lock()
	defer c.mu.Unlock()

	if agent, ok := c.agents[key]; ok {
		return agent, nil
	}
	agent, err := NewRetrievalAgent(c.log, c.ai, c.vec, courseFilter, c.topK)
	if err != nil {
		return nil, err
	}
	c.agents[key] = agent
	c.log.Info("Agent cached", "course", key)
	return agent, nil
}

func (c *agentCache) Clear(courseFilter string) {
	key := agentKey(courseFilter)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.agents, key)
}

func (c *agentCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents = make(map[string]RetrievalAgent)
}
