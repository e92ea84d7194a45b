package vm

import (
	"github.com/holiman/uint256"
)

const stackLimit = 1024

// Stack is the EVM operand stack: at most 1024 256-bit words (§3/§4.A).
type Stack struct {
	data []*uint256.Int
}

func NewStack() *Stack {
	return &Stack{data: make([]*uint256.Int, 0, 16)}
}

func (st *Stack) Push(val *uint256.Int) error {
	if len(st.data) >= stackLimit {
		return ErrStackOverflow
	}
	st.data = append(st.data, val)
	return nil
}

func (st *Stack) Pop() *uint256.Int {
	ret := st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return ret
}

func (st *Stack) Peek() *uint256.Int { return st.data[len(st.data)-1] }

func (st *Stack) Back(n int) *uint256.Int { return st.data[len(st.data)-1-n] }

func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

func (st *Stack) Dup(n int) {
	val := new(uint256.Int).Set(st.data[len(st.data)-n])
	st.data = append(st.data, val)
}

func (st *Stack) Len() int { return len(st.data) }

func (st *Stack) Data() []*uint256.Int { return st.data }

// Require reports whether the stack holds at least n items, the
// underflow check Interpreter.Run performs before executing each opcode.
func (st *Stack) Require(n int) bool { return len(st.data) >= n }
