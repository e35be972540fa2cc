package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sogi-tools/session-module/internal/catalog"
	"github.com/sogi-tools/session-module/internal/domain/model"
	"github.com/sogi-tools/session-module/internal/jobs"
	"github.com/sogi-tools/session-module/internal/password"
	"github.com/sogi-tools/session-module/internal/repository"
	"github.com/sogi-tools/session-module/internal/storage/sessiondir"
)

// --- In-memory фейки репозиториев ---

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *fakeSessionRepo) Exists(_ context.Context, seed string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[seed]
	return ok, nil
}

func (r *fakeSessionRepo) GetBySeed(_ context.Context, seed string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[seed]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) Create(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.Seed]; ok {
		return repository.ErrConflict
	}
	cp := *s
	cp.JobState = model.JobIdle
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.sessions[s.Seed] = &cp
	return nil
}

func (r *fakeSessionRepo) UpdateCurrentNet(_ context.Context, seed, currentNet string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[seed]
	if !ok {
		return repository.ErrNotFound
	}
	s.CurrentNet = currentNet
	return nil
}

func (r *fakeSessionRepo) UpdatePrivacy(_ context.Context, seed string, privacy model.Privacy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[seed]
	if !ok {
		return repository.ErrNotFound
	}
	s.Privacy = privacy
	return nil
}

// TryBeginJob повторяет семантику conditional update:
// проверка и переход выполняются под одной блокировкой.
func (r *fakeSessionRepo) TryBeginJob(_ context.Context, seed, label string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[seed]
	if !ok {
		return false, repository.ErrNotFound
	}
	if s.JobState != model.JobIdle {
		return false, nil
	}
	now := time.Now()
	s.JobState = model.JobRunning
	s.LastJobLabel = label
	s.LastJobAt = &now
	return true, nil
}

func (r *fakeSessionRepo) FinishJob(_ context.Context, seed string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[seed]
	if !ok {
		return repository.ErrNotFound
	}
	s.JobState = model.JobIdle
	return nil
}

func (r *fakeSessionRepo) jobState(seed string) model.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[seed].JobState
}

type fakeSettingsRepo struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{data: make(map[string]map[string]string)}
}

func (r *fakeSettingsRepo) Read(_ context.Context, seed string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[string]string, len(r.data[seed]))
	for k, v := range r.data[seed] {
		result[k] = v
	}
	return result, nil
}

func (r *fakeSettingsRepo) Set(_ context.Context, seed, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data[seed] == nil {
		r.data[seed] = make(map[string]string)
	}
	r.data[seed][key] = value
	return nil
}

func (r *fakeSettingsRepo) SetMany(ctx context.Context, seed string, settings map[string]string) error {
	for k, v := range settings {
		if err := r.Set(ctx, seed, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSettingsRepo) SeedDefaults(ctx context.Context, seed string, defaults map[string]string) error {
	return r.SetMany(ctx, seed, defaults)
}

type fakeShareRepo struct {
	mu     sync.Mutex
	shares map[string]map[int64]bool
	// names — id → nickname, для ListNicknames
	names map[int64]string
}

func newFakeShareRepo(names map[int64]string) *fakeShareRepo {
	return &fakeShareRepo{
		shares: make(map[string]map[int64]bool),
		names:  names,
	}
}

func (r *fakeShareRepo) ListNicknames(_ context.Context, seed string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []string
	for id := range r.shares[seed] {
		result = append(result, r.names[id])
	}
	return result, nil
}

func (r *fakeShareRepo) Add(_ context.Context, seed string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shares[seed] == nil {
		r.shares[seed] = make(map[int64]bool)
	}
	if r.shares[seed][userID] {
		return false, nil
	}
	r.shares[seed][userID] = true
	return true, nil
}

func (r *fakeShareRepo) Remove(_ context.Context, seed string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.shares[seed][userID] {
		return false, nil
	}
	delete(r.shares[seed], userID)
	return true, nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

func (r *fakeUserRepo) GetByNickname(_ context.Context, nickname string) (*model.User, error) {
	u, ok := r.users[nickname]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if _, ok := r.users[u.Nickname]; ok {
		return repository.ErrConflict
	}
	r.users[u.Nickname] = u
	return nil
}

// fakeCreator объединяет вставку сессии и настроек, как транзакционный
// SessionCreator.
type fakeCreator struct {
	sessions *fakeSessionRepo
	settings *fakeSettingsRepo
}

func (c *fakeCreator) CreateWithDefaults(ctx context.Context, s *model.Session, defaults map[string]string) error {
	if err := c.sessions.Create(ctx, s); err != nil {
		return err
	}
	return c.settings.SeedDefaults(ctx, s.Seed, defaults)
}

// --- Фейки runner'а ---

// recordingRunner записывает аргументы вызова и возвращает заданный результат.
type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	out   []byte
	err   error
}

func (r *recordingRunner) Run(_ context.Context, name string, args []string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()
	return r.out, r.err
}

// blockingRunner сигнализирует о старте и блокируется до release.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(_ context.Context, _ string, _ []string) ([]byte, error) {
	close(r.started)
	<-r.release
	return []byte("done"), nil
}

// --- Сборка сервиса для тестов ---

type testEnv struct {
	svc      *SessionService
	sessions *fakeSessionRepo
	settings *fakeSettingsRepo
	shares   *fakeShareRepo
	users    *fakeUserRepo
	layout   *sessiondir.Layout
}

func newTestEnv(t *testing.T, runner jobs.Runner) *testEnv {
	t.Helper()

	layout, err := sessiondir.New(t.TempDir(), "https://sogi.example.com")
	if err != nil {
		t.Fatalf("sessiondir.New() вернул ошибку: %v", err)
	}

	sessions := newFakeSessionRepo()
	settings := newFakeSettingsRepo()
	users := &fakeUserRepo{users: map[string]*model.User{
		"alice": {ID: 1, Nickname: "alice"},
		"bob":   {ID: 2, Nickname: "bob"},
	}}
	shares := newFakeShareRepo(map[int64]string{1: "alice", 2: "bob"})

	svc := NewSessionService(
		sessions,
		settings,
		shares,
		users,
		&fakeCreator{sessions: sessions, settings: settings},
		catalog.New([]string{"CONFIG", "CONSOLE"}),
		layout,
		runner,
		"sogi-convert",
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return &testEnv{
		svc:      svc,
		sessions: sessions,
		settings: settings,
		shares:   shares,
		users:    users,
		layout:   layout,
	}
}

// createSession создаёт сессию и возвращает её seed.
func (e *testEnv) createSession(t *testing.T, p CreateParams) string {
	t.Helper()
	sess, created, err := e.svc.CreateOrLoad(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateOrLoad() вернул ошибку: %v", err)
	}
	if !created {
		t.Fatal("CreateOrLoad() не создал сессию")
	}
	return sess.Seed
}

// writeNetworkFile кладёт файл в директорию сессии.
func (e *testEnv) writeNetworkFile(t *testing.T, seed, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.layout.Path(seed), name), []byte(content), 0o640); err != nil {
		t.Fatalf("не удалось создать файл %s: %v", name, err)
	}
}

// --- CreateOrLoad ---

func TestCreateOrLoad_NewSession(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	sess, created, err := env.svc.CreateOrLoad(ctx, CreateParams{
		Seed:    "mysession42",
		Title:   "Анализ экспрессии",
		Owner:   "alice",
		Privacy: "public",
	})
	if err != nil {
		t.Fatalf("CreateOrLoad() вернул ошибку: %v", err)
	}
	if !created {
		t.Error("created = false, ожидается true")
	}
	if sess.Seed != "mysession42" {
		t.Errorf("Seed = %q, ожидается mysession42", sess.Seed)
	}
	if sess.Privacy != model.PrivacyPublic {
		t.Errorf("Privacy = %q, ожидается public", sess.Privacy)
	}
	if sess.Protected() {
		t.Error("Protected() = true для сессии без пароля")
	}
	if sess.InterfaceURI != "https://sogi.example.com/s/mysession42" {
		t.Errorf("InterfaceURI = %q", sess.InterfaceURI)
	}

	// Директории созданы
	for _, sub := range []string{"", "output_directory", "settings"} {
		if _, err := os.Stat(filepath.Join(env.layout.Path("mysession42"), sub)); err != nil {
			t.Errorf("директория %q не создана: %v", sub, err)
		}
	}

	// Стартовые настройки записаны
	settings, err := env.svc.ReadSettings(ctx, "mysession42")
	if err != nil {
		t.Fatalf("ReadSettings() вернул ошибку: %v", err)
	}
	if v := settings["node_thr"]; v == nil || *v != "1000" {
		t.Errorf("node_thr = %v, ожидается 1000", v)
	}
	if v := settings["default_layout"]; v == nil || *v != "grid" {
		t.Errorf("default_layout = %v, ожидается grid", v)
	}
	if v := settings["sif_sample_col"]; v != nil {
		t.Errorf("sif_sample_col = %v, ожидается nil", *v)
	}
}

func TestCreateOrLoad_ExistingSession(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "existing1", Owner: "alice"})

	// Повторный вызов загружает, а не создаёт
	sess, created, err := env.svc.CreateOrLoad(ctx, CreateParams{Seed: seed, Owner: "bob"})
	if err != nil {
		t.Fatalf("повторный CreateOrLoad() вернул ошибку: %v", err)
	}
	if created {
		t.Error("created = true для существующей сессии")
	}
	if sess.OwnerID != 1 {
		t.Errorf("OwnerID = %d, владелец существующей сессии не должен меняться", sess.OwnerID)
	}
}

func TestCreateOrLoad_GeneratedSeed(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})

	sess, created, err := env.svc.CreateOrLoad(context.Background(), CreateParams{Owner: "alice"})
	if err != nil {
		t.Fatalf("CreateOrLoad() вернул ошибку: %v", err)
	}
	if !created {
		t.Error("created = false, ожидается true")
	}
	if sess.Seed == "" {
		t.Fatal("сгенерированный seed пуст")
	}
	for _, r := range sess.Seed {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			t.Errorf("сгенерированный seed %q содержит недопустимый символ %q", sess.Seed, r)
		}
	}
}

func TestCreateOrLoad_Validation(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	tests := []struct {
		name   string
		params CreateParams
	}{
		{"seed с разделителем пути", CreateParams{Seed: "../etc", Owner: "alice"}},
		{"seed с пробелом внутри", CreateParams{Seed: "my session", Owner: "alice"}},
		{"без владельца", CreateParams{Seed: "valid1", Owner: ""}},
		{"несуществующий владелец", CreateParams{Seed: "valid2", Owner: "nobody"}},
		{"некорректный privacy", CreateParams{Seed: "valid3", Owner: "alice", Privacy: "secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.svc.CreateOrLoad(ctx, tt.params)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("CreateOrLoad() = %v, ожидается ErrValidation", err)
			}
		})
	}
}

func TestCreateOrLoad_Protected(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{
		Seed:     "protected1",
		Owner:    "alice",
		Password: "hunter2",
	})

	match, err := env.svc.IsPasswordMatch(ctx, seed, "hunter2")
	if err != nil {
		t.Fatalf("IsPasswordMatch() вернул ошибку: %v", err)
	}
	if !match {
		t.Error("IsPasswordMatch() = false для корректного пароля")
	}

	match, err = env.svc.IsPasswordMatch(ctx, seed, "wrong")
	if err != nil {
		t.Fatalf("IsPasswordMatch() вернул ошибку: %v", err)
	}
	if match {
		t.Error("IsPasswordMatch() = true для неверного пароля")
	}
}

func TestIsPasswordMatch_UnprotectedAlwaysFalse(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "open1", Owner: "alice"})

	for _, candidate := range []string{"", "anything"} {
		match, err := env.svc.IsPasswordMatch(ctx, seed, candidate)
		if err != nil {
			t.Fatalf("IsPasswordMatch() вернул ошибку: %v", err)
		}
		if match {
			t.Errorf("IsPasswordMatch(%q) = true для незащищённой сессии", candidate)
		}
	}
}

// --- Каталог сетей ---

func TestNetworkList(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "netlist1", Owner: "alice"})
	env.writeNetworkFile(t, seed, "graph.graphml", "<graphml/>")
	env.writeNetworkFile(t, seed, "ready.json", "{}")

	networks, err := env.svc.NetworkList(ctx, seed)
	if err != nil {
		t.Fatalf("NetworkList() вернул ошибку: %v", err)
	}
	if len(networks) != 2 {
		t.Fatalf("NetworkList() вернул %d записей, ожидается 2", len(networks))
	}
	if networks["graph"].Status != model.StatusNeedsConversion {
		t.Errorf("graph.Status = %q", networks["graph"].Status)
	}
	if networks["ready"].Status != model.StatusConverted {
		t.Errorf("ready.Status = %q", networks["ready"].Status)
	}
}

func TestNetworkList_UnknownSession(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})

	if _, err := env.svc.NetworkList(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("NetworkList() = %v, ожидается ErrNotFound", err)
	}
}

// --- Конвертация ---

func TestConvert_Success(t *testing.T) {
	runner := &recordingRunner{out: []byte("ok")}
	env := newTestEnv(t, runner)
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "conv1", Owner: "alice"})
	env.writeNetworkFile(t, seed, "mynet.graphml", "<graphml/>")

	out, err := env.svc.Convert(ctx, seed, "mynet")
	if err != nil {
		t.Fatalf("Convert() вернул ошибку: %v", err)
	}
	if string(out) != "ok" {
		t.Errorf("вывод = %q, ожидается ok", out)
	}

	// Конвертер вызван с путями input/output в директории сессии
	if len(runner.calls) != 1 {
		t.Fatalf("конвертер вызван %d раз, ожидается 1", len(runner.calls))
	}
	call := runner.calls[0]
	if call[0] != "sogi-convert" {
		t.Errorf("команда = %q, ожидается sogi-convert", call[0])
	}
	wantInput := filepath.Join(env.layout.Path(seed), "mynet.graphml")
	wantOutput := filepath.Join(env.layout.Path(seed), "mynet.json")
	if call[1] != wantInput || call[2] != wantOutput {
		t.Errorf("аргументы = %v, ожидается [%s %s]", call[1:], wantInput, wantOutput)
	}

	// Guard снят
	if state := env.sessions.jobState(seed); state != model.JobIdle {
		t.Errorf("job_state = %q после успешной конвертации, ожидается idle", state)
	}
}

func TestConvert_GuardReleasedOnFailure(t *testing.T) {
	runner := &recordingRunner{err: fmt.Errorf("converter exploded")}
	env := newTestEnv(t, runner)
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "convfail1", Owner: "alice"})
	env.writeNetworkFile(t, seed, "bad.graphml", "<graphml/>")

	if _, err := env.svc.Convert(ctx, seed, "bad"); err == nil {
		t.Fatal("Convert() при падении конвертера должен вернуть ошибку")
	}

	// Guard снят несмотря на ошибку: сессия не застревает в running
	if state := env.sessions.jobState(seed); state != model.JobIdle {
		t.Errorf("job_state = %q после ошибки конвертера, ожидается idle", state)
	}

	// Повторный запуск возможен
	runner.err = nil
	if _, err := env.svc.Convert(ctx, seed, "bad"); err != nil {
		t.Errorf("повторный Convert() вернул ошибку: %v", err)
	}
}

func TestConvert_BusyWhileRunning(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	env := newTestEnv(t, runner)
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "convbusy1", Owner: "alice"})
	env.writeNetworkFile(t, seed, "slow.graphml", "<graphml/>")

	firstDone := make(chan error, 1)
	go func() {
		_, err := env.svc.Convert(ctx, seed, "slow")
		firstDone <- err
	}()

	// Ждём, пока первая конвертация захватит guard и начнёт работу
	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("первая конвертация не стартовала")
	}

	// Вторая попытка немедленно отклоняется, без очереди
	if _, err := env.svc.Convert(ctx, seed, "slow"); !errors.Is(err, ErrBusy) {
		t.Errorf("конкурирующий Convert() = %v, ожидается ErrBusy", err)
	}

	close(runner.release)
	if err := <-firstDone; err != nil {
		t.Errorf("первая конвертация вернула ошибку: %v", err)
	}

	if state := env.sessions.jobState(seed); state != model.JobIdle {
		t.Errorf("job_state = %q после завершения, ожидается idle", state)
	}
}

func TestConvert_Validation(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "convval1", Owner: "alice"})
	env.writeNetworkFile(t, seed, "done.json", "{}")

	// Уже сконвертированная сеть
	if _, err := env.svc.Convert(ctx, seed, "done"); !errors.Is(err, ErrValidation) {
		t.Errorf("Convert() сконвертированной сети = %v, ожидается ErrValidation", err)
	}

	// Несуществующая сеть
	if _, err := env.svc.Convert(ctx, seed, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Convert() несуществующей сети = %v, ожидается ErrNotFound", err)
	}

	// Имя сети с разделителями путей
	for _, name := range []string{"", "a/b", `a\b`, "a..b"} {
		if _, err := env.svc.Convert(ctx, seed, name); !errors.Is(err, ErrValidation) {
			t.Errorf("Convert(%q) = %v, ожидается ErrValidation", name, err)
		}
	}
}

// --- Настройки ---

func TestApplySettings_Whitelist(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "settings1", Owner: "alice"})

	err := env.svc.ApplySettings(ctx, seed, map[string]string{
		"node_thr":       "500",
		"sif_sample_col": "3",
		"evil_key":       "ignored",
	})
	if err != nil {
		t.Fatalf("ApplySettings() вернул ошибку: %v", err)
	}

	settings, err := env.svc.ReadSettings(ctx, seed)
	if err != nil {
		t.Fatalf("ReadSettings() вернул ошибку: %v", err)
	}
	if v := settings["node_thr"]; v == nil || *v != "500" {
		t.Errorf("node_thr = %v, ожидается 500", v)
	}
	if v := settings["sif_sample_col"]; v == nil || *v != "3" {
		t.Errorf("sif_sample_col = %v, ожидается 3", v)
	}
	// default_layout не трогали — остался дефолт
	if v := settings["default_layout"]; v == nil || *v != "grid" {
		t.Errorf("default_layout = %v, ожидается grid", v)
	}
	// Ключ вне whitelist не появляется в ответе
	if _, ok := settings["evil_key"]; ok {
		t.Error("ключ вне whitelist попал в настройки")
	}
}

func TestApplySettings_OnlyUnknownKeys(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "settings2", Owner: "alice"})

	// Только ключи вне whitelist — запись не выполняется, не ошибка
	if err := env.svc.ApplySettings(ctx, seed, map[string]string{"junk": "x"}); err != nil {
		t.Errorf("ApplySettings() вернул ошибку: %v", err)
	}
}

func TestSettings_UnknownSession(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	if _, err := env.svc.ReadSettings(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadSettings() = %v, ожидается ErrNotFound", err)
	}
	if err := env.svc.ApplySettings(ctx, "ghost", map[string]string{"node_thr": "1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("ApplySettings() = %v, ожидается ErrNotFound", err)
	}
}

// --- Текущая сеть ---

func TestSetCurrentNetwork(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "curnet1", Owner: "alice"})

	if err := env.svc.SetCurrentNetwork(ctx, seed, "mynet"); err != nil {
		t.Fatalf("SetCurrentNetwork() вернул ошибку: %v", err)
	}

	sess, err := env.svc.Get(ctx, seed)
	if err != nil {
		t.Fatalf("Get() вернул ошибку: %v", err)
	}
	if sess.CurrentNet != "mynet" {
		t.Errorf("CurrentNet = %q, ожидается mynet", sess.CurrentNet)
	}

	if err := env.svc.SetCurrentNetwork(ctx, seed, "../x"); !errors.Is(err, ErrValidation) {
		t.Errorf("SetCurrentNetwork() = %v, ожидается ErrValidation", err)
	}
	if err := env.svc.SetCurrentNetwork(ctx, "ghost", "mynet"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetCurrentNetwork() = %v, ожидается ErrNotFound", err)
	}
}

// --- Приватность ---

func TestSetPrivacy(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "priv1", Owner: "alice"})

	if err := env.svc.SetPrivacy(ctx, seed, "public"); err != nil {
		t.Fatalf("SetPrivacy() вернул ошибку: %v", err)
	}

	sess, err := env.svc.Get(ctx, seed)
	if err != nil {
		t.Fatalf("Get() вернул ошибку: %v", err)
	}
	if sess.Privacy != model.PrivacyPublic {
		t.Errorf("Privacy = %q, ожидается public", sess.Privacy)
	}

	if err := env.svc.SetPrivacy(ctx, seed, "secret"); !errors.Is(err, ErrValidation) {
		t.Errorf("SetPrivacy(secret) = %v, ожидается ErrValidation", err)
	}
	if err := env.svc.SetPrivacy(ctx, "ghost", "public"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPrivacy(ghost) = %v, ожидается ErrNotFound", err)
	}
}

// --- Шаринг ---

func TestShareWith(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "share1", Owner: "alice"})

	added, err := env.svc.ShareWith(ctx, seed, "bob")
	if err != nil {
		t.Fatalf("ShareWith() вернул ошибку: %v", err)
	}
	if !added {
		t.Error("added = false при первом шаринге")
	}

	// Повторный шаринг — идемпотентный no-op
	added, err = env.svc.ShareWith(ctx, seed, "bob")
	if err != nil {
		t.Fatalf("повторный ShareWith() вернул ошибку: %v", err)
	}
	if added {
		t.Error("added = true при повторном шаринге")
	}

	// Шаринг с владельцем — no-op
	added, err = env.svc.ShareWith(ctx, seed, "alice")
	if err != nil {
		t.Fatalf("ShareWith() с владельцем вернул ошибку: %v", err)
	}
	if added {
		t.Error("added = true при шаринге с владельцем")
	}

	nicknames, err := env.svc.SharedWith(ctx, seed)
	if err != nil {
		t.Fatalf("SharedWith() вернул ошибку: %v", err)
	}
	if len(nicknames) != 1 || nicknames[0] != "bob" {
		t.Errorf("SharedWith() = %v, ожидается [bob]", nicknames)
	}
}

func TestShareWith_UnknownUser(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "share2", Owner: "alice"})

	if _, err := env.svc.ShareWith(ctx, seed, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ShareWith() = %v, ожидается ErrNotFound", err)
	}
}

func TestRevokeShareWith(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})
	ctx := context.Background()

	seed := env.createSession(t, CreateParams{Seed: "share3", Owner: "alice"})

	if _, err := env.svc.ShareWith(ctx, seed, "bob"); err != nil {
		t.Fatalf("ShareWith() вернул ошибку: %v", err)
	}
	if err := env.svc.RevokeShareWith(ctx, seed, "bob"); err != nil {
		t.Fatalf("RevokeShareWith() вернул ошибку: %v", err)
	}

	// Повторный отзыв — идемпотентный no-op
	if err := env.svc.RevokeShareWith(ctx, seed, "bob"); err != nil {
		t.Errorf("повторный RevokeShareWith() вернул ошибку: %v", err)
	}

	nicknames, err := env.svc.SharedWith(ctx, seed)
	if err != nil {
		t.Fatalf("SharedWith() вернул ошибку: %v", err)
	}
	if len(nicknames) != 0 {
		t.Errorf("SharedWith() = %v, ожидается пустой список", nicknames)
	}
}

// --- NewUnusedID ---

func TestNewUnusedID(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})

	id, err := env.svc.NewUnusedID(context.Background())
	if err != nil {
		t.Fatalf("NewUnusedID() вернул ошибку: %v", err)
	}
	if len(id) <= 10 {
		t.Errorf("длина seed %q = %d, ожидается unix-время плюс токен из 10 символов", id, len(id))
	}
	if err := validateSeed(id); err != nil {
		t.Errorf("сгенерированный seed не проходит валидацию: %v", err)
	}
}

// Проверка хэширования пароля при создании: в durable-записи хранится
// bcrypt-хэш, не открытый текст.
func TestCreateOrLoad_PasswordNotStoredPlain(t *testing.T) {
	env := newTestEnv(t, &recordingRunner{})

	seed := env.createSession(t, CreateParams{
		Seed:     "hashcheck1",
		Owner:    "alice",
		Password: "plaintext",
	})

	sess, err := env.svc.Get(context.Background(), seed)
	if err != nil {
		t.Fatalf("Get() вернул ошибку: %v", err)
	}
	if sess.PasswordHash == "plaintext" {
		t.Error("пароль сохранён открытым текстом")
	}
	if !password.Match(sess.PasswordHash, "plaintext") {
		t.Error("сохранённый хэш не соответствует паролю")
	}
}
