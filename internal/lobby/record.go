// internal/lobby/record.go
package lobby

// Visibility is the advertised privacy of a lobby.
type Visibility int

const (
	VisibilityPublic      Visibility = 0
	VisibilityPrivate     Visibility = 1
	VisibilityFriendsOnly Visibility = 2
	VisibilityLocked      Visibility = 3
)

// PermissionLevel ranks a player's privileges inside a lobby.
type PermissionLevel int

const (
	PermissionGuest    PermissionLevel = -1
	PermissionDefault  PermissionLevel = 0
	PermissionOperator PermissionLevel = 1
	PermissionOwner    PermissionLevel = 2
)

// TimeScaleMode is the lobby's slow-motion rule.
type TimeScaleMode int

const (
	TimeScaleDisabled           TimeScaleMode = 0
	TimeScaleLowGravity         TimeScaleMode = 1
	TimeScaleHostOnly           TimeScaleMode = 2
	TimeScaleEveryone           TimeScaleMode = 3
	TimeScaleClientSideUnstable TimeScaleMode = 4
)

// Player is one member of a lobby.
type Player struct {
	ID              uint64          `json:"longId"`
	Username        string          `json:"username"`
	Nickname        string          `json:"nickname,omitempty"`
	PermissionLevel PermissionLevel `json:"permissionLevel"`
	AvatarTitle     string          `json:"avatarTitle,omitempty"`
	AvatarModID     int64           `json:"avatarModId"`
}

// PlayerList wraps the player roster; the wire payload nests it this way.
type PlayerList struct {
	Players []Player `json:"players"`
}

// Record is the decoded description of one lobby. Records are immutable
// once built from metadata: each refresh replaces them wholesale, they
// are never mutated in place.
type Record struct {
	// Identity
	ID          uint64 `json:"lobbyId"`
	Code        string `json:"lobbyCode"`
	Name        string `json:"lobbyName"`
	Description string `json:"lobbyDescription"`
	Version     string `json:"lobbyVersion"`
	HostName    string `json:"lobbyHostName"`
	HostID      uint64 `json:"-"`

	PlayerCount int        `json:"playerCount"`
	PlayerList  PlayerList `json:"playerList"`

	// Location
	LevelTitle   string `json:"levelTitle"`
	LevelBarcode string `json:"levelBarcode"`
	LevelModID   int64  `json:"levelModId"`

	// Gamemode
	GamemodeTitle   string `json:"gamemodeTitle"`
	GamemodeBarcode string `json:"gamemodeBarcode"`

	// Settings
	NameTags           bool          `json:"nameTags"`
	Privacy            Visibility    `json:"privacy"`
	SlowMoMode         TimeScaleMode `json:"slowMoMode"`
	MaxPlayers         int           `json:"maxPlayers"`
	VoiceChat          bool          `json:"voiceChat"`
	PlayerConstraining bool          `json:"playerConstraining"`
	Mortality          bool          `json:"mortality"`
	FriendlyFire       bool          `json:"friendlyFire"`
	Knockout           bool          `json:"knockout"`
	KnockoutLength     int           `json:"knockoutLength"`

	// Permissions
	DevTools      PermissionLevel `json:"devTools"`
	Constrainer   PermissionLevel `json:"constrainer"`
	CustomAvatars PermissionLevel `json:"customAvatars"`
	Kicking       PermissionLevel `json:"kicking"`
	Banning       PermissionLevel `json:"banning"`
	Teleportation PermissionLevel `json:"teleportation"`
}

// Full reports whether the lobby has no open slots.
func (r *Record) Full() bool {
	return r.PlayerCount >= r.MaxPlayers
}
