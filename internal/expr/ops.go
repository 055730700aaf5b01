package expr

import "math"

type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpLT
	OpLE
	OpGT
	OpGE
	OpEQ
	OpNE
	OpAnd
	OpOr
)

var opNames = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpNeg: "-", OpNot: "!",
	OpLT: "<", OpLE: "<=", OpGT: ">", OpGE: ">=", OpEQ: "==", OpNE: "!=",
	OpAnd: "&&", OpOr: "||",
}

func (o Op) String() string { return opNames[o] }

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var unaryFuncs = map[Op]func(float64) float64{
	OpNeg: func(x float64) float64 { return -x },
	OpNot: func(x float64) float64 { return boolf(x == 0) },
}

var binaryFuncs = map[Op]func(x, y float64) float64{
	OpAdd: func(x, y float64) float64 { return x + y },
	OpSub: func(x, y float64) float64 { return x - y },
	OpMul: func(x, y float64) float64 { return x * y },
	OpDiv: func(x, y float64) float64 { return x / y },
	OpMod: math.Mod,
	OpLT:  func(x, y float64) float64 { return boolf(x < y) },
	OpLE:  func(x, y float64) float64 { return boolf(x <= y) },
	OpGT:  func(x, y float64) float64 { return boolf(x > y) },
	OpGE:  func(x, y float64) float64 { return boolf(x >= y) },
	OpEQ:  func(x, y float64) float64 { return boolf(x == y) },
	OpNE:  func(x, y float64) float64 { return boolf(x != y) },
	OpAnd: func(x, y float64) float64 { return boolf(x != 0 && y != 0) },
	OpOr:  func(x, y float64) float64 { return boolf(x != 0 || y != 0) },
}
