package trace_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/vm"
	"github.com/edr-dev/edr/trace"
)

func TestRecorderBuildsCallTraceInDefaultMode(t *testing.T) {
	r := trace.NewRecorder(false)

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	r.OnEnter(0, vm.CALL, from, to, []byte{0x60, 0x00}, 100000, uint256.NewInt(0))
	stack := vm.NewStack()
	stack.Push(uint256.NewInt(42))
	r.OnOpcode(0, vm.PUSH1, 99997, 3, 1, stack, vm.NewMemory(), nil)
	r.OnExit(0, nil, 21000, nil)

	ct := r.CallTrace()
	require.False(t, ct.Failed)
	require.Equal(t, uint64(21000), ct.Gas)
	require.Len(t, ct.StructLogs, 1)
	require.Equal(t, "PUSH1", ct.StructLogs[0].Op)
	require.Len(t, ct.StructLogs[0].Stack, 1)
	require.Nil(t, ct.StructLogs[0].Memory)
}

func TestRecorderVerboseModeCapturesMemory(t *testing.T) {
	r := trace.NewRecorder(true)
	mem := vm.NewMemory()
	mem.Resize(32)
	mem.Set32(0, uint256.NewInt(7))

	stack := vm.NewStack()
	stack.Push(uint256.NewInt(1))
	stack.Push(uint256.NewInt(2))
	r.OnOpcode(0, vm.MSTORE, 1000, 6, 0, stack, mem, nil)

	items := r.Items()
	require.Len(t, items, 1)
	require.Len(t, items[0].Stack, 2)
	require.Equal(t, 32, len(items[0].Memory))
}

func TestCoverageSinkDedupesRepeatedTags(t *testing.T) {
	var seenOrder []common.Hash
	sink := trace.NewCoverageSink(func(tag common.Hash) {
		seenOrder = append(seenOrder, tag)
	})

	tagA := common.HexToHash("0x01")
	tagB := common.HexToHash("0x02")

	require.NoError(t, sink.Callback(tagA.Bytes()))
	require.NoError(t, sink.Callback(tagA.Bytes()))
	require.NoError(t, sink.Callback(tagB.Bytes()))

	require.Equal(t, uint64(3), sink.Hits())
	require.ElementsMatch(t, []common.Hash{tagA, tagB}, sink.Tags())
	require.Equal(t, []common.Hash{tagA, tagB}, seenOrder)
}

func TestCoverageSinkRejectsWrongSizedTag(t *testing.T) {
	sink := trace.NewCoverageSink(nil)
	err := sink.Callback([]byte{0x01, 0x02})
	require.Error(t, err)
}

// minimalProxyCode emits PUSH20 <impl> ... DELEGATECALL within the scan
// window, the shape a minimal EIP-1167 clone compiles to.
func minimalProxyCode(impl common.Address) []byte {
	code := []byte{byte(vm.PUSH20)}
	code = append(code, impl.Bytes()...)
	code = append(code, byte(vm.DUP1), byte(vm.DELEGATECALL))
	return code
}

type fakeDecoder struct {
	byCode map[common.Hash]trace.ContractIdentity
}

func (d fakeDecoder) Identify(codeHash common.Hash) (trace.ContractIdentity, bool) {
	id, ok := d.byCode[codeHash]
	return id, ok
}
func (d fakeDecoder) DecodeRevert([]byte) (string, bool)                { return "", false }
func (d fakeDecoder) FunctionSignature([]byte, [4]byte) (string, bool)  { return "", false }

func TestGasReportRecorderAttributesProxyChain(t *testing.T) {
	proxyAddr := common.HexToAddress("0x00000000000000000000000000000000000a0a")
	implAddr := common.HexToAddress("0x00000000000000000000000000000000000b0b")
	implCode := []byte{byte(vm.PUSH1), 0x2a, byte(vm.STOP)}
	proxyCode := minimalProxyCode(implAddr)

	proxyHash := common.HexToHash("0xaa")
	implHash := common.HexToHash("0xbb")

	decoder := fakeDecoder{byCode: map[common.Hash]trace.ContractIdentity{
		proxyHash: {Name: "Proxy"},
		implHash:  {Name: "Implementation"},
	}}

	resolve := func(addr common.Address) (common.Hash, []byte) {
		switch addr {
		case proxyAddr:
			return proxyHash, proxyCode
		case implAddr:
			return implHash, implCode
		default:
			return common.Hash{}, nil
		}
	}

	rec := trace.NewGasReportRecorder(decoder, resolve)
	rec.OnEnter(0, vm.CALL, common.Address{}, proxyAddr, []byte{0x55, 0x24, 0x11, 0x92}, 100000, uint256.NewInt(0))
	rec.OnExit(0, nil, 30000, nil)

	require.Len(t, rec.Reports, 1)
	report := rec.Reports[0]
	require.Equal(t, "Proxy", report.Identity.Name)
	require.True(t, report.Success)
	require.Len(t, report.ProxyChain, 1)
	require.Equal(t, "Implementation", report.ProxyChain[0].Name)
}

func TestGasReportRecorderDirectCallHasEmptyProxyChain(t *testing.T) {
	implAddr := common.HexToAddress("0x00000000000000000000000000000000000b0b")
	implCode := []byte{byte(vm.PUSH1), 0x2a, byte(vm.STOP)}
	implHash := common.HexToHash("0xbb")

	decoder := fakeDecoder{byCode: map[common.Hash]trace.ContractIdentity{
		implHash: {Name: "Implementation"},
	}}
	resolve := func(common.Address) (common.Hash, []byte) { return implHash, implCode }

	rec := trace.NewGasReportRecorder(decoder, resolve)
	rec.OnEnter(0, vm.CALL, common.Address{}, implAddr, nil, 100000, uint256.NewInt(0))
	rec.OnExit(0, nil, 21000, nil)

	require.Len(t, rec.Reports, 1)
	require.Empty(t, rec.Reports[0].ProxyChain)
}
