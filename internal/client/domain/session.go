// Package domain содержит модель данных клиента аутентификации.
package domain

// StorageMode определяет место хранения учетных данных.
type StorageMode int

// Режимы хранения.
const (
	// Ephemeral - данные живут только в памяти процесса.
	Ephemeral StorageMode = iota
	// Durable - данные переживают перезапуск (режим "запомнить меня").
	Durable
)

// String возвращает имя режима.
func (m StorageMode) String() string {
	if m == Durable {
		return "durable"
	}
	return "ephemeral"
}

// Phase - состояние жизненного цикла сессии.
type Phase int

// Состояния сессии.
const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseAuthenticated
	PhaseUnauthenticated
)

// String возвращает имя состояния.
func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "uninitialized"
	}
}

// TokenPair - пара токенов. RefreshToken может быть пустым.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// HasRefreshToken сообщает, есть ли refresh-токен.
func (p *TokenPair) HasRefreshToken() bool {
	return p != nil && p.RefreshToken != ""
}

// UserProfile - кэшируемый профиль пользователя.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Session - снимок состояния аутентификации.
type Session struct {
	User            *UserProfile
	Tokens          *TokenPair
	IsAuthenticated bool
	StorageMode     StorageMode
	Loading         bool
	Initialized     bool
	Phase           Phase
}
