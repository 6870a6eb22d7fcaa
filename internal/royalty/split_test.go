package royalty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// $1000.00（100000 分）、5 位受益患者：整除情形
func TestComputeSplit_EvenlyDivisible(t *testing.T) {
	s := ComputeSplit(100000, 5)

	assert.Equal(t, int64(20000), s.PlatformShare)
	assert.Equal(t, int64(30000), s.PhysicianShare)
	assert.Equal(t, int64(50000), s.PatientPool)
	assert.Equal(t, int64(10000), s.PerPatientShare)
	assert.Equal(t, int64(0), s.RemainderShare)
}

// $1000.01、3 位患者：患者池是总额减去平台和医师份额的余额，不是第三次独立取整
func TestComputeSplit_PoolIsRemainderOfTotal(t *testing.T) {
	s := ComputeSplit(100001, 3)

	assert.Equal(t, int64(20000), s.PlatformShare)
	assert.Equal(t, int64(30000), s.PhysicianShare)
	assert.Equal(t, int64(50001), s.PatientPool)
	assert.Equal(t, int64(16667), s.PerPatientShare)
	assert.Equal(t, int64(0), s.RemainderShare)
}

// platform+physician+pool 恒等于 total
func TestComputeSplit_SharesAlwaysSumToTotal(t *testing.T) {
	for _, total := range []int64{1, 7, 99, 100001, 123456789, 1} {
		for _, count := range []int{0, 1, 3, 7, 100} {
			s := ComputeSplit(total, count)
			assert.Equal(t, total, s.PlatformShare+s.PhysicianShare+s.PatientPool,
				"total=%d count=%d", total, count)
			assert.Equal(t, s.PatientPool, s.PerPatientShare*int64(count)+s.RemainderShare,
				"total=%d count=%d", total, count)
		}
	}
}

// 无受益患者：每人份额为 0，患者池全额进入 remainder 显式报告
func TestComputeSplit_ZeroPatients(t *testing.T) {
	s := ComputeSplit(100000, 0)

	assert.Equal(t, int64(0), s.PerPatientShare)
	assert.Equal(t, int64(50000), s.RemainderShare)
}

func TestComputeSplit_IndivisiblePatientPool(t *testing.T) {
	s := ComputeSplit(100000, 3)

	assert.Equal(t, int64(50000), s.PatientPool)
	assert.Equal(t, int64(16666), s.PerPatientShare)
	assert.Equal(t, int64(2), s.RemainderShare)
}

func TestBuildTransfers_OrderAndAmounts(t *testing.T) {
	s := ComputeSplit(100000, 2)
	transfers := BuildTransfers(s, "PlatformWallet111", "PhysicianWallet222", []string{"PatientA", "PatientB"})

	assert.Len(t, transfers, 4)
	assert.Equal(t, Transfer{Address: "PlatformWallet111", Amount: 20000}, transfers[0])
	assert.Equal(t, Transfer{Address: "PhysicianWallet222", Amount: 30000}, transfers[1])
	assert.Equal(t, Transfer{Address: "PatientA", Amount: 25000}, transfers[2])
	assert.Equal(t, Transfer{Address: "PatientB", Amount: 25000}, transfers[3])
}

// 金额为 0 的腿整体省略，不发空转账
func TestBuildTransfers_OmitsZeroAmountLegs(t *testing.T) {
	s := ComputeSplit(3, 2) // platform=0, physician=0, pool=3, perPatient=1
	transfers := BuildTransfers(s, "PlatformWallet111", "PhysicianWallet222", []string{"PatientA", "PatientB"})

	assert.Len(t, transfers, 2)
	for _, tr := range transfers {
		assert.Greater(t, tr.Amount, int64(0))
	}
}

func TestBuildTransfers_NoPatients(t *testing.T) {
	s := ComputeSplit(100000, 0)
	transfers := BuildTransfers(s, "PlatformWallet111", "PhysicianWallet222", nil)

	assert.Len(t, transfers, 2)
}

func TestMemo_ReferencesQueryAndCount(t *testing.T) {
	memo := Memo("q-123", 7)

	assert.Equal(t, "AutoCase RWE Royalty | QueryRef:q-123 | Patients:7", memo)
}
