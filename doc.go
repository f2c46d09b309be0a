// Package qflash drives quad-I/O serial NOR flash chips (Winbond W25Q /
// GigaDevice GD25Q families) over a pluggable bus transport: plain SPI for
// single-wire operation, Linux spidev for quad-wide transfers, or a QSPI
// memory controller that can additionally arm a memory-mapped read window.
//
// # References:
//
// SPI Flash
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//   - [GD25Q64]: GD25Q64C GigaDevice Serial Flash (https://www.gigadevice.com.cn/Public/Uploads/uploadfile/files/20230109/DS-00113-GD25Q64C-Rev3.1.pdf)
//   - [JESD216]: JEDEC Serial Flash Discoverable Parameters (SFDP)
//
// Transports
//   - [spidev]: Linux Documentation/spi/spidev.rst and include/uapi/linux/spi/spidev.h
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
package qflash
