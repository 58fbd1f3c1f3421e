// Package action defines the closed set of requests a network worker can
// hand to the tick worker, and the queue that carries them.
//
// Actions are values, not references: everything needed to execute one is
// carried inline, so the tick worker never reaches back into a network
// session to re-read state that might have changed underneath it.
package action

// Kind tags which variant an Action holds.
type Kind uint8

const (
	KindMove Kind = iota
	KindTurn
	KindLogin
	KindLogout
	KindChat
	KindSpawnBots
	KindRemoveBots
)

// Action is a closed tagged union. Only the fields relevant to Kind are
// meaningful; this mirrors the original's std::variant dispatch as a plain
// struct instead of an interface, since there is no need for open
// polymorphism over action kinds — the tick scheduler switches on Kind.
type Action struct {
	Kind Kind

	ClientID uint64
	PingMS   uint32

	// Move / Turn
	Direction uint8
	Facing    uint8

	// Login
	Name string
	// Chat
	Channel uint8
	Text    string

	// SpawnBots / RemoveBots
	Count     int
	Clustered bool
}

func Move(clientID uint64, direction, facing uint8, pingMS uint32) Action {
	return Action{Kind: KindMove, ClientID: clientID, Direction: direction, Facing: facing, PingMS: pingMS}
}

func Turn(clientID uint64, facing uint8) Action {
	return Action{Kind: KindTurn, ClientID: clientID, Facing: facing}
}

func Login(clientID uint64, name string) Action {
	return Action{Kind: KindLogin, ClientID: clientID, Name: name}
}

func Logout(clientID uint64) Action {
	return Action{Kind: KindLogout, ClientID: clientID}
}

func Chat(clientID uint64, channel uint8, text string) Action {
	return Action{Kind: KindChat, ClientID: clientID, Channel: channel, Text: text}
}

func SpawnBots(count int, clustered bool) Action {
	return Action{Kind: KindSpawnBots, Count: count, Clustered: clustered}
}

func RemoveBots() Action {
	return Action{Kind: KindRemoveBots}
}
