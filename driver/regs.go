package driver

// Register map of the SQRL Ethash bitstream. One symbolic table,
// shared by the driver and its tests.
const (
	// Identification
	regDeviceMagic      = 0x0000
	regBitstreamVersion = 0x0008
	regDNALo            = 0x1000
	regDNAMid           = 0x1008
	regDNAHi            = 0x7000

	// SYSMON
	regDieTempRaw = 0x3400
	regVoltageRaw = 0x3404

	// DAG generator
	regDagCtrl       = 0x4000 // bit 1 = done
	regDagNumParents = 0x4008 // num_parent_nodes, doubles as progress
	regMixerBase     = 0x400C // start at 0x400C+8i, end at 0x4010+8i
	regDagEpochTag   = 0x40B8 // bit 31 = valid, low 16 = epoch
	regCacheCtrl     = 0x40BC // bit 1 = done
	regCacheSeed     = 0x40C0 // 32 bytes, byte-swapped bulk

	// Hashcore
	regHeader       = 0x5000 // 32 bytes
	regBoundary     = 0x5020 // 32 bytes
	regNItems       = 0x5040
	regTChecksHi    = 0x5044
	regTChecksLo    = 0x5048
	regNonceLo      = 0x5064
	regNonceHi      = 0x5068
	regCoreCtrl     = 0x506C // 0x00010001 start+irq, 0x00010000 clear, 0 reset
	regCoreFlags    = 0x5080 // intensity/patience
	regStallCounter = 0x5084
	regRNItems      = 0x5088

	// HBM
	regHBMStatus = 0x7008

	// Clocking
	regClkReset   = 0x8000
	regClkLocked  = 0x8004 // bit 0 = locked
	regPLLVCO     = 0x8200
	regPLLClk0    = 0x8208
	regPLLControl = 0x825C

	// FK VRM (wiper-style regulator)
	regFKReset   = 0x9040
	regFKControl = 0x9100
	regFKTxFIFO  = 0x9108

	// JC PMIC (I2C bridge)
	regJCReset   = 0xA040
	regJCControl = 0xA100
	regJCTxFIFO  = 0xA108

	// DAG generator power
	regDagPower = 0xB000
)

// Core control words.
const (
	coreStartIRQ   = 0x00010001
	coreClearNonce = 0x00010000
	coreReset      = 0x0
)

// I2C TX-FIFO marker bits.
const (
	i2cStart = 0x100
	i2cStop  = 0x200
)

// PMBus address of the JC PMIC.
const jcPMICAddr = 0x4D
