package web

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/users-api/webserver/internal/models/user"
	"github.com/users-api/webserver/internal/services"
)

// memoryStore is an in-memory UserStore with the same observable behavior as user.UserManager.
type memoryStore struct {
	mu    sync.Mutex
	order []primitive.ObjectID
	docs  map[primitive.ObjectID]user.User
	// err, when set, is returned by every call.
	err error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[primitive.ObjectID]user.User{}}
}

func clone(u user.User) user.User {
	out := u
	out.FavoriteFoods = append([]string{}, u.FavoriteFoods...)
	if u.Age != nil {
		age := *u.Age
		out.Age = &age
	}
	return out
}

func (m *memoryStore) all() []user.User {
	users := []user.User{}
	for _, id := range m.order {
		if u, ok := m.docs[id]; ok {
			users = append(users, clone(u))
		}
	}
	return users
}

func (m *memoryStore) remove(id primitive.ObjectID) {
	delete(m.docs, id)
	for i, other := range m.order {
		if other == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *memoryStore) GetAllUsers(context.Context) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.all(), nil
}

func (m *memoryStore) CreateUser(_ context.Context, u *user.User) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	u.ID = primitive.NewObjectID()
	m.docs[u.ID] = clone(*u)
	m.order = append(m.order, u.ID)
	return u, nil
}

func (m *memoryStore) CreateUsers(_ context.Context, users []user.User) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for i := range users {
		if err := users[i].Validate(); err != nil {
			return nil, err
		}
	}
	for i := range users {
		users[i].ID = primitive.NewObjectID()
		m.docs[users[i].ID] = clone(users[i])
		m.order = append(m.order, users[i].ID)
	}
	return users, nil
}

func (m *memoryStore) UpdateUserByID(_ context.Context, id primitive.ObjectID, patch *user.Patch) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	u, ok := m.docs[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Age != nil {
		age := *patch.Age
		u.Age = &age
	}
	if patch.FavoriteFoods != nil {
		u.FavoriteFoods = append([]string{}, (*patch.FavoriteFoods)...)
	}
	m.docs[id] = u
	out := clone(u)
	return &out, nil
}

func (m *memoryStore) DeleteUserByID(_ context.Context, id primitive.ObjectID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.docs[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	m.remove(id)
	return &u, nil
}

func (m *memoryStore) GetUsersByName(_ context.Context, name string) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	users := []user.User{}
	for _, u := range m.all() {
		if u.Name == name {
			users = append(users, u)
		}
	}
	return users, nil
}

func (m *memoryStore) GetUserByFavoriteFood(_ context.Context, food string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.all() {
		if u.HasFavoriteFood(food) {
			return &u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (m *memoryStore) GetUserByID(_ context.Context, id primitive.ObjectID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.docs[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	out := clone(u)
	return &out, nil
}

func (m *memoryStore) AddFavoriteFood(ctx context.Context, id primitive.ObjectID, food string) (*user.User, error) {
	u, err := m.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.AddFavoriteFood(food) {
		return u, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return nil, user.ErrUserNotFound
	}
	m.docs[id] = clone(*u)
	return u, nil
}

func (m *memoryStore) SetAgeByName(_ context.Context, name string, age int) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, id := range m.order {
		u := m.docs[id]
		if u.Name == name {
			u.Age = &age
			m.docs[id] = u
			out := clone(u)
			return &out, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (m *memoryStore) DeleteUsersByName(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var count int64
	for _, u := range m.all() {
		if u.Name == name {
			m.remove(u.ID)
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) SearchByFavoriteFood(_ context.Context, food string, limit int64) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	users := []user.User{}
	for _, u := range m.all() {
		if u.HasFavoriteFood(food) {
			u.Age = nil
			users = append(users, u)
		}
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	if int64(len(users)) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *memoryStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events    []services.UserEvent
	deadlines []time.Duration
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, event services.UserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	if deadline, ok := ctx.Deadline(); ok {
		p.deadlines = append(p.deadlines, time.Until(deadline))
	}
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
