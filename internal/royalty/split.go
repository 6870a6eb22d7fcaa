package royalty

import "fmt"

// 固定分成比例：平台 20% | 主治医师 30% | 患者池 50%
const (
	platformPercent  = 20
	physicianPercent = 30
)

// Split 分账结果值对象。计算后不可变，由查询审计记录引用。
// 全部金额为结算币种最小单位（minor units）上的整数。
type Split struct {
	Total           int64 `json:"total"`
	PlatformShare   int64 `json:"platformShare"`
	PhysicianShare  int64 `json:"physicianShare"`
	PatientPool     int64 `json:"patientPool"`
	PerPatientShare int64 `json:"perPatientShare"`
	PatientCount    int   `json:"patientCount"`
	RemainderShare  int64 `json:"remainderShare"`
}

// Transfer 单笔转账指令 (address, amount)。金额为 0 的指令不生成。
type Transfer struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// ComputeSplit 计算确定性整数分账。
//
// 取整顺序：先对平台、医师份额做整数向下取整，患者池取总额减去两者的余额
// （不是第三次独立取整），保证 platform+physician+pool 恒等于 total。
// patientCount=0 时 perPatientShare=0，患者池全额保留在 remainderShare 中
// 显式报告（回笼平台金库还是挂账由调用方决定，引擎不吞掉）。
func ComputeSplit(totalMinor int64, patientCount int) Split {
	platform := totalMinor * platformPercent / 100
	physician := totalMinor * physicianPercent / 100
	pool := totalMinor - platform - physician

	var perPatient int64
	if patientCount > 0 {
		perPatient = pool / int64(patientCount)
	}
	remainder := pool - perPatient*int64(patientCount)

	return Split{
		Total:           totalMinor,
		PlatformShare:   platform,
		PhysicianShare:  physician,
		PatientPool:     pool,
		PerPatientShare: perPatient,
		PatientCount:    patientCount,
		RemainderShare:  remainder,
	}
}

// BuildTransfers 由分账结果生成有序转账指令序列：
// 平台份额、医师份额、每位患者钱包各一笔。金额为 0 的腿整体省略，不发空转账。
// 指令完全在引擎内生成，其他组件不需要重算分账。
func BuildTransfers(s Split, platformWallet, physicianWallet string, patientWallets []string) []Transfer {
	var transfers []Transfer

	if s.PlatformShare > 0 && platformWallet != "" {
		transfers = append(transfers, Transfer{Address: platformWallet, Amount: s.PlatformShare})
	}
	if s.PhysicianShare > 0 && physicianWallet != "" {
		transfers = append(transfers, Transfer{Address: physicianWallet, Amount: s.PhysicianShare})
	}
	if s.PerPatientShare > 0 {
		for _, wallet := range patientWallets {
			transfers = append(transfers, Transfer{Address: wallet, Amount: s.PerPatientShare})
		}
	}

	return transfers
}

// Memo 生成随批次提交的审计备注（引用查询 ID 和受益患者数）
func Memo(queryID string, patientCount int) string {
	return fmt.Sprintf("AutoCase RWE Royalty | QueryRef:%s | Patients:%d", queryID, patientCount)
}
