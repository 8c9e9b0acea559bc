package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/Dosada05/chip-tournament-system/models"
	"github.com/Dosada05/chip-tournament-system/repositories"
	"github.com/Dosada05/chip-tournament-system/storage"
)

// memStore — общее in-memory хранилище, реализующее все интерфейсы
// репозиториев. Сервисы тестируются против него без базы данных.
// Семантика уникальных индексов воспроизводится вручную, потому что
// однократность расчёта держится именно на них.
type memStore struct {
	mu sync.Mutex

	tournaments map[int]*models.Tournament
	rounds      map[int]*models.TournamentRound
	players     map[int]*models.TournamentPlayer
	results     map[int]*models.RoundResult
	accounts    map[int]*models.Account
	platforms   map[int]*models.Platform

	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		tournaments: make(map[int]*models.Tournament),
		rounds:      make(map[int]*models.TournamentRound),
		players:     make(map[int]*models.TournamentPlayer),
		results:     make(map[int]*models.RoundResult),
		accounts:    make(map[int]*models.Account),
		platforms:   make(map[int]*models.Platform),
	}
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

// memTxManager выполняет функцию без транзакции: атомарность в тестах
// обеспечивает мьютекс хранилища на уровне каждого вызова.
type memTxManager struct{}

func (memTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// --- TournamentRepository ---

func (m *memStore) Create(ctx context.Context, t *models.Tournament) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	t.CreatedAt = time.Now()
	copied := *t
	m.tournaments[t.ID] = &copied
	return nil
}

func (m *memStore) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memStore) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return m.GetByID(ctx, exec, id)
}

func (m *memStore) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Tournament
	for _, t := range m.tournaments {
		if filter.PlatformID != nil && (t.PlatformID == nil || *t.PlatformID != *filter.PlatformID) {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) UpdateCurrentRound(ctx context.Context, exec repositories.SQLExecutor, id int, round int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.CurrentRound = round
	return nil
}

func (m *memStore) UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tournaments[tournamentID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (m *memStore) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(m.tournaments, id)
	return nil
}

func (m *memStore) ListDueForTransition(ctx context.Context, exec repositories.SQLExecutor, now time.Time) ([]*models.Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.Tournament
	for _, t := range m.tournaments {
		switch t.Status {
		case models.StatusCreated:
			if !t.RegistrationStart.IsZero() && !t.RegistrationStart.After(now) {
				copied := *t
				due = append(due, &copied)
			}
		case models.StatusRegistering, models.StatusRunning:
			if !t.StartTime.IsZero() && !t.StartTime.After(now) {
				copied := *t
				due = append(due, &copied)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

// --- RoundRepository ---

func (m *memStore) CreateRound(ctx context.Context, exec repositories.SQLExecutor, round *models.TournamentRound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRoundLocked(round)
}

func (m *memStore) createRoundLocked(round *models.TournamentRound) error {
	for _, r := range m.rounds {
		if r.TournamentID == round.TournamentID && r.Number == round.Number {
			return repositories.ErrRoundNumberConflict
		}
	}
	round.ID = m.id()
	round.CreatedAt = time.Now()
	copied := *round
	m.rounds[round.ID] = &copied
	return nil
}

func (m *memStore) CreateRoundBatch(ctx context.Context, exec repositories.SQLExecutor, rounds []*models.TournamentRound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rounds {
		if err := m.createRoundLocked(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) FindByTournamentAndNumber(ctx context.Context, exec repositories.SQLExecutor, tournamentID, number int) (*models.TournamentRound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rounds {
		if r.TournamentID == tournamentID && r.Number == number {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (m *memStore) FindByTournamentAndNumberForUpdate(ctx context.Context, exec repositories.SQLExecutor, tournamentID, number int) (*models.TournamentRound, error) {
	return m.FindByTournamentAndNumber(ctx, exec, tournamentID, number)
}

func (m *memStore) GetRoundByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentRound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *memStore) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.TournamentRound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TournamentRound
	for _, r := range m.rounds {
		if r.TournamentID == tournamentID {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memStore) UpdateRoundStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.RoundStatus, openedAt, closedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	r.Status = status
	if openedAt != nil {
		r.OpenedAt = openedAt
	}
	if closedAt != nil {
		r.ClosedAt = closedAt
	}
	return nil
}

// --- PlayerRepository ---

func (m *memStore) CreatePlayer(ctx context.Context, exec repositories.SQLExecutor, player *models.TournamentPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.TournamentID == player.TournamentID && p.AccountID == player.AccountID {
			return repositories.ErrPlayerConflict
		}
	}
	player.ID = m.id()
	player.JoinedAt = time.Now()
	copied := *player
	m.players[player.ID] = &copied
	return nil
}

func (m *memStore) FindByTournamentAndAccount(ctx context.Context, exec repositories.SQLExecutor, tournamentID, accountID int) (*models.TournamentPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.TournamentID == tournamentID && p.AccountID == accountID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (m *memStore) FindByTournamentAndAccountForUpdate(ctx context.Context, exec repositories.SQLExecutor, tournamentID, accountID int) (*models.TournamentPlayer, error) {
	return m.FindByTournamentAndAccount(ctx, exec, tournamentID, accountID)
}

func (m *memStore) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.players {
		if p.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListByTournamentRanked(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TournamentPlayer
	for _, p := range m.players {
		if p.TournamentID == tournamentID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChipsCurrent != out[j].ChipsCurrent {
			return out[i].ChipsCurrent > out[j].ChipsCurrent
		}
		return out[i].TotalWins > out[j].TotalWins
	})
	return out, nil
}

func (m *memStore) LeaderboardByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.LeaderboardRow, error) {
	players, err := m.ListByTournamentRanked(ctx, exec, tournamentID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]models.LeaderboardRow, 0, len(players))
	for _, p := range players {
		username := ""
		if acc, ok := m.accounts[p.AccountID]; ok {
			username = acc.Username
		}
		rows = append(rows, models.LeaderboardRow{
			AccountID:    p.AccountID,
			Username:     username,
			ChipsCurrent: p.ChipsCurrent,
			TotalWins:    p.TotalWins,
			TotalLosses:  p.TotalLosses,
			FinalRank:    p.FinalRank,
		})
	}
	return rows, nil
}

func (m *memStore) ApplySettlement(ctx context.Context, exec repositories.SQLExecutor, playerID int, chipsCurrent, winsDelta, lossesDelta, pushesDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.ChipsCurrent = chipsCurrent
	p.TotalWins += winsDelta
	p.TotalLosses += lossesDelta
	p.TotalPushes += pushesDelta
	p.LastUpdated = time.Now()
	return nil
}

func (m *memStore) SetFinalRank(ctx context.Context, exec repositories.SQLExecutor, playerID int, rank int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.FinalRank = &rank
	return nil
}

// --- RoundResultRepository ---

func (m *memStore) CreateResult(ctx context.Context, exec repositories.SQLExecutor, result *models.RoundResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	settled := func(o models.RoundOutcome) bool {
		return o == models.OutcomeWin || o == models.OutcomeLose || o == models.OutcomePush
	}
	for _, r := range m.results {
		if settled(result.Outcome) && settled(r.Outcome) &&
			r.RoundID == result.RoundID && r.AccountID == result.AccountID {
			return repositories.ErrRoundResultConflict
		}
		if result.VoidOfID != nil && r.VoidOfID != nil && *r.VoidOfID == *result.VoidOfID {
			return repositories.ErrRoundResultVoided
		}
	}
	result.ID = m.id()
	result.RecordedAt = time.Now()
	copied := *result
	m.results[result.ID] = &copied
	return nil
}

func (m *memStore) GetResultByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.RoundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	if !ok {
		return nil, repositories.ErrRoundResultNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *memStore) FindByRoundAndAccount(ctx context.Context, exec repositories.SQLExecutor, roundID, accountID int) (*models.RoundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.RoundID == roundID && r.AccountID == accountID && r.Outcome != models.OutcomeVoid {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrRoundResultNotFound
}

func (m *memStore) FindVoidOf(ctx context.Context, exec repositories.SQLExecutor, resultID int) (*models.RoundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.VoidOfID != nil && *r.VoidOfID == resultID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrRoundResultNotFound
}

func (m *memStore) ListByAccount(ctx context.Context, accountID int) ([]models.PlayerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PlayerTransaction
	for _, r := range m.results {
		if r.AccountID != accountID {
			continue
		}
		tx := models.PlayerTransaction{
			ResultID:   r.ID,
			BetChips:   r.BetChips,
			Outcome:    r.Outcome,
			ChipsDelta: r.ChipsDelta,
			ChipsAfter: r.ChipsAfter,
			VoidOfID:   r.VoidOfID,
			RecordedAt: r.RecordedAt,
		}
		if round, ok := m.rounds[r.RoundID]; ok {
			tx.RoundNumber = round.Number
			tx.TournamentID = round.TournamentID
			if t, ok := m.tournaments[round.TournamentID]; ok {
				tx.TournamentName = t.Name
			}
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResultID > out[j].ResultID })
	return out, nil
}

// --- AccountRepository ---

func (m *memStore) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == account.Username && intPtrEqual(a.PlatformID, account.PlatformID) {
			return repositories.ErrAccountUsernameConflict
		}
	}
	account.ID = m.id()
	account.CreatedAt = time.Now()
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *memStore) GetAccountByID(ctx context.Context, id int) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memStore) GetByUsername(ctx context.Context, platformID *int, username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == username && intPtrEqual(a.PlatformID, platformID) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repositories.ErrAccountNotFound
}

func (m *memStore) ListByPlatform(ctx context.Context, platformID int) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, a := range m.accounts {
		if a.PlatformID != nil && *a.PlatformID == platformID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- PlatformRepository ---

func (m *memStore) CreatePlatform(ctx context.Context, platform *models.Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.platforms {
		if p.Code == platform.Code {
			return repositories.ErrPlatformCodeConflict
		}
	}
	platform.ID = m.id()
	copied := *platform
	m.platforms[platform.ID] = &copied
	return nil
}

func (m *memStore) GetPlatformByID(ctx context.Context, id int) (*models.Platform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.platforms[id]
	if !ok {
		return nil, repositories.ErrPlatformNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memStore) ListPlatforms(ctx context.Context) ([]models.Platform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Platform
	for _, p := range m.platforms {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Адаптеры над memStore: интерфейсы репозиториев используют одинаковые
// имена методов (Create, GetByID), поэтому один тип не может реализовать
// их все напрямую.

type roundRepoFake struct{ *memStore }

func (f roundRepoFake) Create(ctx context.Context, exec repositories.SQLExecutor, round *models.TournamentRound) error {
	return f.CreateRound(ctx, exec, round)
}

func (f roundRepoFake) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, rounds []*models.TournamentRound) error {
	return f.CreateRoundBatch(ctx, exec, rounds)
}

func (f roundRepoFake) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentRound, error) {
	return f.GetRoundByID(ctx, exec, id)
}

func (f roundRepoFake) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.RoundStatus, openedAt, closedAt *time.Time) error {
	return f.UpdateRoundStatus(ctx, exec, id, status, openedAt, closedAt)
}

type playerRepoFake struct{ *memStore }

func (f playerRepoFake) Create(ctx context.Context, exec repositories.SQLExecutor, player *models.TournamentPlayer) error {
	return f.CreatePlayer(ctx, exec, player)
}

type resultRepoFake struct{ *memStore }

func (f resultRepoFake) Create(ctx context.Context, exec repositories.SQLExecutor, result *models.RoundResult) error {
	return f.CreateResult(ctx, exec, result)
}

func (f resultRepoFake) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.RoundResult, error) {
	return f.GetResultByID(ctx, exec, id)
}

type accountRepoFake struct{ *memStore }

func (f accountRepoFake) Create(ctx context.Context, account *models.Account) error {
	return f.CreateAccount(ctx, account)
}

func (f accountRepoFake) GetByID(ctx context.Context, id int) (*models.Account, error) {
	return f.GetAccountByID(ctx, id)
}

type platformRepoFake struct{ *memStore }

func (f platformRepoFake) Create(ctx context.Context, platform *models.Platform) error {
	return f.CreatePlatform(ctx, platform)
}

func (f platformRepoFake) GetByID(ctx context.Context, id int) (*models.Platform, error) {
	return f.GetPlatformByID(ctx, id)
}

func (f platformRepoFake) List(ctx context.Context) ([]models.Platform, error) {
	return f.ListPlatforms(ctx)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// --- вспомогательные заглушки ---

type recordingScheduler struct {
	mu           sync.Mutex
	scheduled    []int
	deregistered []int
}

func (r *recordingScheduler) ScheduleTournament(t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, t.ID)
	return nil
}

func (r *recordingScheduler) DeregisterTournament(tournamentID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregistered = append(r.deregistered, tournamentID)
	return nil
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingBroadcaster) BroadcastToRoom(roomID string, message interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, roomID)
}

type nopUploader struct{}

func (nopUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	return &storage.UploadResult{Key: key}, nil
}

func (nopUploader) Delete(ctx context.Context, key string) error { return nil }

func (nopUploader) GetPublicURL(key string) string { return "https://cdn.test/" + key }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv собирает сервисы поверх memStore с управляемыми часами.
type testEnv struct {
	store       *memStore
	clock       *quartz.Mock
	broadcaster *recordingBroadcaster
	scheduler   *recordingScheduler

	tournaments *TournamentService
	rounds      *RoundService
	settlement  *SettlementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	clock := quartz.NewMock(t)
	broadcaster := &recordingBroadcaster{}
	scheduler := &recordingScheduler{}
	logger := testLogger()

	tournaments := NewTournamentService(
		memTxManager{},
		store,
		roundRepoFake{store},
		playerRepoFake{store},
		platformRepoFake{store},
		nopUploader{},
		broadcaster,
		clock,
		logger,
	)
	tournaments.AttachScheduler(scheduler)

	rounds := NewRoundService(memTxManager{}, store, roundRepoFake{store}, tournaments, clock, logger)

	settlement := NewSettlementService(
		memTxManager{},
		store,
		playerRepoFake{store},
		resultRepoFake{store},
		accountRepoFake{store},
		rounds,
		broadcaster,
		logger,
	)

	return &testEnv{
		store:       store,
		clock:       clock,
		broadcaster: broadcaster,
		scheduler:   scheduler,
		tournaments: tournaments,
		rounds:      rounds,
		settlement:  settlement,
	}
}

func intPtr(v int) *int { return &v }
