// session.go — сервис жизненного цикла сессий.
// Координирует репозитории, каталог сетей, раскладку директорий и
// внешний конвертер. Взаимное исключение конвертаций — per session,
// через conditional update на job_state (job guard).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sogi-tools/session-module/internal/catalog"
	"github.com/sogi-tools/session-module/internal/domain/model"
	"github.com/sogi-tools/session-module/internal/jobs"
	"github.com/sogi-tools/session-module/internal/password"
	"github.com/sogi-tools/session-module/internal/repository"
	"github.com/sogi-tools/session-module/internal/storage/sessiondir"
)

// settingsLabels — закрытый whitelist ключей настроек сессии.
// Записи с любыми другими ключами молча игнорируются.
var settingsLabels = []string{"sif_sample_col", "node_thr", "default_layout"}

// defaultSettings — стартовые значения, записываемые при создании сессии.
// sif_sample_col стартового значения не имеет.
var defaultSettings = map[string]string{
	"node_thr":       "1000",
	"default_layout": "grid",
}

// maxIDAttempts — предел повторов генерации свободного seed.
const maxIDAttempts = 10

// Prometheus-метрики конвертаций.
var (
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sm_conversions_total",
		Help: "Общее количество запусков конвертации сетей.",
	}, []string{"status"})

	conversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sm_conversion_duration_seconds",
		Help:    "Длительность конвертации сетей в секундах.",
		Buckets: prometheus.DefBuckets,
	})

	jobBusyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_job_busy_total",
		Help: "Количество отклонённых запусков: операция уже выполнялась.",
	})
)

// SessionService — бизнес-логика сессий.
type SessionService struct {
	sessions repository.SessionRepository
	settings repository.SettingsRepository
	shares   repository.ShareRepository
	users    repository.UserRepository
	creator  repository.SessionCreator

	catalog *catalog.Catalog
	layout  *sessiondir.Layout
	runner  jobs.Runner

	// converterCmd — внешняя команда конвертации graphml → json
	converterCmd string
	logger       *slog.Logger
}

// NewSessionService создаёт сервис сессий.
func NewSessionService(
	sessions repository.SessionRepository,
	settings repository.SettingsRepository,
	shares repository.ShareRepository,
	users repository.UserRepository,
	creator repository.SessionCreator,
	cat *catalog.Catalog,
	layout *sessiondir.Layout,
	runner jobs.Runner,
	converterCmd string,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		sessions:     sessions,
		settings:     settings,
		shares:       shares,
		users:        users,
		creator:      creator,
		catalog:      cat,
		layout:       layout,
		runner:       runner,
		converterCmd: converterCmd,
		logger:       logger.With(slog.String("service", "sessions")),
	}
}

// CreateParams — входные данные CreateOrLoad.
type CreateParams struct {
	// Seed — желаемый идентификатор; пустой — сгенерировать свободный
	Seed string
	// Title — название сессии
	Title string
	// Owner — nickname владельца (резолвится во внутренний id)
	Owner string
	// Privacy — public или private; пустое значение — private
	Privacy string
	// Password — опциональный пароль; пустой — сессия без защиты
	Password string
}

// Exists проверяет существование сессии. Без побочных эффектов.
func (s *SessionService) Exists(ctx context.Context, seed string) (bool, error) {
	return s.sessions.Exists(ctx, seed)
}

// Get возвращает сессию по seed.
func (s *SessionService) Get(ctx context.Context, seed string) (*model.Session, error) {
	sess, err := s.sessions.GetBySeed(ctx, seed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// CreateOrLoad возвращает сессию с данным seed, создавая её при
// отсутствии. Возвращает created=true, если сессия была создана.
//
// Порядок создания: durable-вставка (вместе со стартовыми настройками,
// в одной транзакции) — затем директории на диске. Гонка двух
// создателей разрешается уникальным ограничением: проигравший получает
// ErrConflict и не создаёт директорий.
func (s *SessionService) CreateOrLoad(ctx context.Context, p CreateParams) (*model.Session, bool, error) {
	seed := strings.TrimSpace(p.Seed)
	if seed == "" {
		var err error
		if seed, err = s.NewUnusedID(ctx); err != nil {
			return nil, false, err
		}
	}
	if err := validateSeed(seed); err != nil {
		return nil, false, err
	}

	exists, err := s.sessions.Exists(ctx, seed)
	if err != nil {
		return nil, false, err
	}
	if exists {
		sess, err := s.Get(ctx, seed)
		return sess, false, err
	}

	sess, err := s.buildNewSession(ctx, seed, p)
	if err != nil {
		return nil, false, err
	}

	if err := s.creator.CreateWithDefaults(ctx, sess, defaultSettings); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, false, fmt.Errorf("%w: seed %s", ErrConflict, seed)
		}
		return nil, false, err
	}

	if err := s.layout.Create(seed); err != nil {
		return nil, false, err
	}

	s.logger.Info("Сессия создана",
		slog.String("seed", seed),
		slog.String("owner", p.Owner),
		slog.String("privacy", string(sess.Privacy)),
		slog.Bool("protected", sess.Protected()),
	)

	// Перечитываем durable-запись: серверные timestamps и дефолты
	loaded, err := s.Get(ctx, seed)
	return loaded, true, err
}

// buildNewSession валидирует входные данные и собирает модель новой сессии.
func (s *SessionService) buildNewSession(ctx context.Context, seed string, p CreateParams) (*model.Session, error) {
	if strings.TrimSpace(p.Owner) == "" {
		return nil, fmt.Errorf("%w: владелец не задан", ErrValidation)
	}

	privacy := model.PrivacyPrivate
	if p.Privacy != "" {
		var err error
		if privacy, err = model.ParsePrivacy(p.Privacy); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err)
		}
	}

	owner, err := s.users.GetByNickname(ctx, p.Owner)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: владелец %q не найден", ErrValidation, p.Owner)
		}
		return nil, err
	}

	var hash string
	if p.Password != "" {
		if hash, err = password.Hash(p.Password); err != nil {
			return nil, err
		}
	}

	return &model.Session{
		Seed:         seed,
		Title:        strings.TrimSpace(p.Title),
		FolderPath:   s.layout.Path(seed),
		InterfaceURI: s.layout.PublicURI(seed),
		OwnerID:      owner.ID,
		Privacy:      privacy,
		PasswordHash: hash,
	}, nil
}

// NewUnusedID генерирует свободный seed: unix-время плюс случайный
// токен фиксированной длины, с повтором пока кандидат занят.
// Генератор не атомарен с последующим созданием: финальную гонку
// закрывает уникальное ограничение в CreateOrLoad.
func (s *SessionService) NewUnusedID(ctx context.Context) (string, error) {
	for range maxIDAttempts {
		candidate := fmt.Sprintf("%d%s", time.Now().Unix(), randomToken(10))
		exists, err := s.sessions.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("не удалось подобрать свободный seed за %d попыток", maxIDAttempts)
}

// NetworkList возвращает каталог сетей сессии.
// Каждый вызов — свежий скан директории, без кэширования.
func (s *SessionService) NetworkList(ctx context.Context, seed string) (map[string]model.NetworkEntry, error) {
	sess, err := s.Get(ctx, seed)
	if err != nil {
		return nil, err
	}
	return s.catalog.Rescan(sess.FolderPath)
}

// Convert запускает внешнюю конвертацию сети graphml → json под job
// guard. Возвращает захваченный вывод конвертера.
//
// Переход idle → running фиксируется в БД до запуска команды;
// возврат в idle выполняется и при успехе, и при ошибке команды.
// Второй конкурирующий вызов немедленно получает ErrBusy, без очереди.
func (s *SessionService) Convert(ctx context.Context, seed, network string) ([]byte, error) {
	if err := validateNetworkName(network); err != nil {
		return nil, err
	}

	sess, err := s.Get(ctx, seed)
	if err != nil {
		return nil, err
	}

	networks, err := s.catalog.Rescan(sess.FolderPath)
	if err != nil {
		return nil, err
	}
	entry, ok := networks[network]
	if !ok {
		return nil, fmt.Errorf("%w: сеть %q", ErrNotFound, network)
	}
	if entry.Status == model.StatusConverted {
		return nil, fmt.Errorf("%w: сеть %q уже сконвертирована", ErrValidation, network)
	}

	label := "convert:" + network
	begun, err := s.sessions.TryBeginJob(ctx, seed, label)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !begun {
		jobBusyTotal.Inc()
		return nil, fmt.Errorf("%w: сессия %s", ErrBusy, seed)
	}

	// Guard снимается всегда, в том числе при ошибке конвертера
	defer func() {
		if finishErr := s.sessions.FinishJob(ctx, seed); finishErr != nil {
			s.logger.Error("Не удалось вернуть сессию в idle",
				slog.String("seed", seed),
				slog.String("error", finishErr.Error()),
			)
		}
	}()

	input := filepath.Join(sess.FolderPath, network+".graphml")
	output := filepath.Join(sess.FolderPath, network+".json")

	start := time.Now()
	out, runErr := s.runner.Run(ctx, s.converterCmd, []string{input, output})
	conversionDuration.Observe(time.Since(start).Seconds())

	if runErr != nil {
		conversionsTotal.WithLabelValues("error").Inc()
		return out, fmt.Errorf("конвертация сети %q не удалась: %w", network, runErr)
	}

	conversionsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Сеть сконвертирована",
		slog.String("seed", seed),
		slog.String("network", network),
	)
	return out, nil
}

// ReadSettings возвращает все whitelisted-настройки сессии.
// Незаписанные ключи присутствуют в ответе со значением nil.
func (s *SessionService) ReadSettings(ctx context.Context, seed string) (map[string]*string, error) {
	if err := s.mustExist(ctx, seed); err != nil {
		return nil, err
	}

	stored, err := s.settings.Read(ctx, seed)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*string, len(settingsLabels))
	for _, label := range settingsLabels {
		if v, ok := stored[label]; ok {
			result[label] = &v
		} else {
			result[label] = nil
		}
	}
	return result, nil
}

// ApplySettings применяет частичное обновление настроек.
// Ключи вне whitelist молча игнорируются; если ни один whitelisted
// ключ не передан — запись в БД не выполняется вовсе.
func (s *SessionService) ApplySettings(ctx context.Context, seed string, partial map[string]string) error {
	if err := s.mustExist(ctx, seed); err != nil {
		return err
	}

	changed := make(map[string]string)
	for _, label := range settingsLabels {
		if v, ok := partial[label]; ok {
			changed[label] = v
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if err := s.settings.SetMany(ctx, seed, changed); err != nil {
		return err
	}

	s.logger.Info("Настройки сессии обновлены",
		slog.String("seed", seed),
		slog.Int("keys", len(changed)),
	)
	return nil
}

// SetPrivacy изменяет приватность сессии.
func (s *SessionService) SetPrivacy(ctx context.Context, seed, privacy string) error {
	parsed, err := model.ParsePrivacy(privacy)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if err := s.sessions.UpdatePrivacy(ctx, seed, parsed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.Info("Приватность сессии изменена",
		slog.String("seed", seed),
		slog.String("privacy", privacy),
	)
	return nil
}

// SetCurrentNetwork сохраняет имя сети, загруженной в канвас.
func (s *SessionService) SetCurrentNetwork(ctx context.Context, seed, network string) error {
	if err := validateNetworkName(network); err != nil {
		return err
	}

	if err := s.sessions.UpdateCurrentNet(ctx, seed, network); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// IsPasswordMatch проверяет кандидата пароля.
// Незащищённая сессия не имеет пароля — всегда false.
func (s *SessionService) IsPasswordMatch(ctx context.Context, seed, candidate string) (bool, error) {
	sess, err := s.Get(ctx, seed)
	if err != nil {
		return false, err
	}
	return password.Match(sess.PasswordHash, candidate), nil
}

// SharedWith возвращает имена пользователей, с которыми сессия расшарена.
func (s *SessionService) SharedWith(ctx context.Context, seed string) ([]string, error) {
	if err := s.mustExist(ctx, seed); err != nil {
		return nil, err
	}
	return s.shares.ListNicknames(ctx, seed)
}

// ShareWith расшаривает сессию с пользователем. Идемпотентна:
// повторный шаринг и шаринг с владельцем — молчаливые no-op.
// Возвращает true, если шаринг был добавлен этим вызовом.
func (s *SessionService) ShareWith(ctx context.Context, seed, nickname string) (bool, error) {
	sess, err := s.Get(ctx, seed)
	if err != nil {
		return false, err
	}

	user, err := s.users.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("%w: пользователь %q", ErrNotFound, nickname)
		}
		return false, err
	}

	// Шаринг с владельцем не имеет смысла — no-op
	if user.ID == sess.OwnerID {
		return false, nil
	}

	added, err := s.shares.Add(ctx, seed, user.ID)
	if err != nil {
		return false, err
	}
	if added {
		s.logger.Info("Сессия расшарена",
			slog.String("seed", seed),
			slog.String("nickname", nickname),
		)
	}
	return added, nil
}

// RevokeShareWith отзывает шаринг. Идемпотентна: отзыв несуществующего
// шаринга — молчаливый no-op.
func (s *SessionService) RevokeShareWith(ctx context.Context, seed, nickname string) error {
	if err := s.mustExist(ctx, seed); err != nil {
		return err
	}

	user, err := s.users.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь %q", ErrNotFound, nickname)
		}
		return err
	}

	removed, err := s.shares.Remove(ctx, seed, user.ID)
	if err != nil {
		return err
	}
	if removed {
		s.logger.Info("Шаринг сессии отозван",
			slog.String("seed", seed),
			slog.String("nickname", nickname),
		)
	}
	return nil
}

// mustExist возвращает ErrNotFound, если сессии с данным seed нет.
func (s *SessionService) mustExist(ctx context.Context, seed string) error {
	exists, err := s.sessions.Exists(ctx, seed)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: сессия %s", ErrNotFound, seed)
	}
	return nil
}

// validateSeed проверяет seed: непустой, только латинские буквы и
// цифры. Seed используется как имя директории на диске.
func validateSeed(seed string) error {
	if seed == "" {
		return fmt.Errorf("%w: пустой seed", ErrValidation)
	}
	for _, r := range seed {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("%w: недопустимый символ %q в seed", ErrValidation, r)
		}
	}
	return nil
}

// validateNetworkName проверяет имя сети: непустое, без разделителей
// путей. Имя подставляется в пути файлов директории сессии.
func validateNetworkName(network string) error {
	if network == "" {
		return fmt.Errorf("%w: пустое имя сети", ErrValidation)
	}
	if strings.ContainsAny(network, `/\`) || strings.Contains(network, "..") {
		return fmt.Errorf("%w: недопустимое имя сети %q", ErrValidation, network)
	}
	return nil
}

// randomToken возвращает случайную hex-строку длины n.
func randomToken(n int) string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	if n > len(token) {
		n = len(token)
	}
	return token[:n]
}
