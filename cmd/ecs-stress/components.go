package main

// Simulation component types used by the stress workers. They mirror the
// size and shape of typical game-state records so lock contention under the
// stress mix resembles real workloads.

type Transform struct {
	X, Y, Z float64
}

type Velocity struct {
	DX, DY, DZ float64
}

type Population struct {
	Count  int64
	Growth float64
}

type Treasury struct {
	Gold    int64
	Income  int64
	Expense int64
}

type Morale struct {
	Level float64
}

// Stress message types.

type EconomyTickMessage struct {
	Worker int
	Seq    int
}

type BattleResolvedMessage struct {
	Attacker, Defender uint64
	Casualties         int
}
